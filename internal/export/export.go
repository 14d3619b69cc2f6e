// Package export samples automation timelines into mono 16-bit WAV files
// for inspection in an audio editor. Nothing here synthesizes sound: each
// sample is the control value at that instant.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/roach88/lookahead/internal/automation"
)

// DefaultRate is the control rate in samples per second.
const DefaultRate = 1000

// MaxSamples caps the samples in one window, a little under three hours at
// DefaultRate.
const MaxSamples = 10_000_000

const (
	bitDepth  = 16
	maxSample = 1<<(bitDepth-1) - 1
	pcmFormat = 1
)

var (
	// ErrEmptyWindow is returned when a window holds no samples.
	ErrEmptyWindow = errors.New("export window holds no samples")

	// ErrWindowTooLarge is returned when a window holds more than MaxSamples.
	ErrWindowTooLarge = errors.New("export window holds too many samples")
)

// Window selects the span of a timeline to sample.
type Window struct {
	From float64
	To   float64
	Rate int // samples per second; DefaultRate when zero
}

func (w Window) rate() int {
	if w.Rate <= 0 {
		return DefaultRate
	}
	return w.Rate
}

// count returns the number of sample points in w.
func (w Window) count() (int, error) {
	rate := w.rate()
	n := math.Round((w.To - w.From) * float64(rate))
	switch {
	case math.IsNaN(n) || n > MaxSamples:
		return 0, fmt.Errorf("%w: from %v to %v at %d Hz exceeds %d", ErrWindowTooLarge, w.From, w.To, rate, MaxSamples)
	case n <= 0:
		return 0, fmt.Errorf("%w: from %v to %v at %d Hz", ErrEmptyWindow, w.From, w.To, rate)
	}
	return int(n), nil
}

// Sample returns the timeline's value at every sample point of w, the i-th
// at From + i/Rate. Points before the first event take the base value.
func Sample(tl *automation.Timeline, w Window) ([]float64, error) {
	n, err := w.count()
	if err != nil {
		return nil, err
	}

	rate := w.rate()
	values := make([]float64, n)
	for i := range values {
		t := w.From + float64(i)/float64(rate)
		v, err := tl.ValueAtTime(t)
		if errors.Is(err, automation.ErrNoAnchor) {
			v, err = tl.BaseValue(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("sample at %v: %w", t, err)
		}
		values[i] = v
	}
	return values, nil
}

// toPCM maps control values to 16-bit samples, clamping to [-1, 1].
func toPCM(values []float64) []int {
	data := make([]int, len(values))
	for i, v := range values {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * maxSample))
	}
	return data
}

// WriteWAV samples w and encodes it to ws. Returns the number of samples
// written.
func WriteWAV(ws io.WriteSeeker, tl *automation.Timeline, w Window) (int, error) {
	values, err := Sample(tl, w)
	if err != nil {
		return 0, err
	}

	rate := w.rate()
	enc := wav.NewEncoder(ws, rate, bitDepth, 1, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           toPCM(values),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("finalize wav: %w", err)
	}

	slog.Debug("exported timeline",
		"from", w.From,
		"to", w.To,
		"rate", rate,
		"samples", len(values),
	)
	return len(values), nil
}

// WriteFile writes the WAV to path, replacing any existing file. A window
// that cannot be sampled leaves path untouched.
func WriteFile(path string, tl *automation.Timeline, w Window) (int, error) {
	if _, err := w.count(); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	n, err := WriteWAV(f, tl, w)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
