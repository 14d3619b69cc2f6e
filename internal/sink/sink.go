package sink

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// Op names an instruction type.
type Op string

const (
	OpSet    Op = "set"
	OpRamp   Op = "ramp"
	OpCancel Op = "cancel"
)

// Target is anything that accepts automation instructions.
type Target interface {
	SetValueAtTime(value, t float64)
	LinearRampToValueAtTime(value, t float64)
	CancelScheduledValues(t float64)
}

// Instruction is one captured sink call. Value is zero for cancels.
type Instruction struct {
	Op    Op      `json:"op"`
	Value float64 `json:"value"`
	Time  float64 `json:"time"`
}

// String renders "set 0.5 @2" or "cancel @2".
func (i Instruction) String() string {
	if i.Op == OpCancel {
		return fmt.Sprintf("%s @%s", i.Op, formatFloat(i.Time))
	}
	return fmt.Sprintf("%s %s @%s", i.Op, formatFloat(i.Value), formatFloat(i.Time))
}

// Apply replays the instruction onto t.
func (i Instruction) Apply(t Target) error {
	switch i.Op {
	case OpSet:
		t.SetValueAtTime(i.Value, i.Time)
	case OpRamp:
		t.LinearRampToValueAtTime(i.Value, i.Time)
	case OpCancel:
		t.CancelScheduledValues(i.Time)
	default:
		return fmt.Errorf("unknown instruction op %q", i.Op)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Recorder captures every instruction it receives, in order.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	instructions []Instruction
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetValueAtTime(value, t float64) {
	r.record(Instruction{Op: OpSet, Value: value, Time: t})
}

func (r *Recorder) LinearRampToValueAtTime(value, t float64) {
	r.record(Instruction{Op: OpRamp, Value: value, Time: t})
}

func (r *Recorder) CancelScheduledValues(t float64) {
	r.record(Instruction{Op: OpCancel, Time: t})
}

func (r *Recorder) record(i Instruction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructions = append(r.instructions, i)
}

// Instructions returns a copy of everything recorded so far.
func (r *Recorder) Instructions() []Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instruction, len(r.instructions))
	copy(out, r.instructions)
	return out
}

// Filter returns the recorded instructions whose op is one of ops.
func (r *Recorder) Filter(ops ...Op) []Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Instruction
	for _, i := range r.instructions {
		for _, op := range ops {
			if i.Op == op {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Len returns the number of recorded instructions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instructions)
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructions = r.instructions[:0]
}

// Logger writes each instruction to a slog.Logger at debug level.
type Logger struct {
	name   string
	logger *slog.Logger
}

// NewLogger creates a logging sink labelled with the parameter name.
// A nil logger uses slog.Default().
func NewLogger(name string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{name: name, logger: logger}
}

func (l *Logger) SetValueAtTime(value, t float64) {
	l.logger.Debug("automation instruction", "param", l.name, "op", string(OpSet), "value", value, "time", t)
}

func (l *Logger) LinearRampToValueAtTime(value, t float64) {
	l.logger.Debug("automation instruction", "param", l.name, "op", string(OpRamp), "value", value, "time", t)
}

func (l *Logger) CancelScheduledValues(t float64) {
	l.logger.Debug("automation instruction", "param", l.name, "op", string(OpCancel), "time", t)
}

// Tee forwards every instruction to each of its targets in order.
type Tee []Target

func (t Tee) SetValueAtTime(value, at float64) {
	for _, s := range t {
		s.SetValueAtTime(value, at)
	}
}

func (t Tee) LinearRampToValueAtTime(value, at float64) {
	for _, s := range t {
		s.LinearRampToValueAtTime(value, at)
	}
}

func (t Tee) CancelScheduledValues(at float64) {
	for _, s := range t {
		s.CancelScheduledValues(at)
	}
}
