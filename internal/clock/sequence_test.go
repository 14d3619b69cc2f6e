package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_NewSequence(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current(), "new sequence should start at 0")
}

func TestSequence_NewSequenceAt(t *testing.T) {
	s := NewSequenceAt(100)
	assert.Equal(t, int64(100), s.Current())
	assert.Equal(t, int64(101), s.Next(), "first value after NewSequenceAt(100) is 101")
}

func TestSequence_ZeroValue(t *testing.T) {
	var s Sequence
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_Next_Incrementing(t *testing.T) {
	s := NewSequence()

	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(3), s.Next())

	assert.Equal(t, int64(3), s.Current())
}

func TestSequence_IndependentInstances(t *testing.T) {
	a := NewSequence()
	b := NewSequence()

	a.Next()
	a.Next()

	assert.Equal(t, int64(1), b.Next(), "instances must not share counters")
	assert.Equal(t, int64(3), a.Next())
}

func TestSequence_ThreadSafe(t *testing.T) {
	s := NewSequence()
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	values := make(chan int64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				values <- s.Next()
			}
		}()
	}

	wg.Wait()
	close(values)

	seen := make(map[int64]bool)
	for v := range values {
		assert.False(t, seen[v], "value %d generated twice", v)
		seen[v] = true
	}

	assert.Len(t, seen, goroutines*callsPerGoroutine)
}
