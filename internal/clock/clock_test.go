package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_StartsAtGivenTime(t *testing.T) {
	m := NewManual(2.5)
	assert.Equal(t, 2.5, m.CurrentTime())
}

func TestManual_Advance(t *testing.T) {
	m := NewManual(0)

	assert.Equal(t, 0.25, m.Advance(0.25))
	assert.Equal(t, 0.75, m.Advance(0.5))
	assert.Equal(t, 0.75, m.CurrentTime())
}

func TestManual_NeverMovesBackwards(t *testing.T) {
	m := NewManual(1)

	m.Advance(-0.5)
	assert.Equal(t, 1.0, m.CurrentTime(), "negative advance is ignored")

	m.Set(0.5)
	assert.Equal(t, 1.0, m.CurrentTime(), "Set into the past is ignored")

	m.Set(3)
	assert.Equal(t, 3.0, m.CurrentTime())
}

func TestManual_ThreadSafe(t *testing.T) {
	m := NewManual(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Advance(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, m.CurrentTime())
}

func TestWall_ElapsedSeconds(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base
	w := &Wall{start: base, now: func() time.Time { return now }}

	assert.Equal(t, 0.0, w.CurrentTime())

	now = base.Add(1500 * time.Millisecond)
	assert.Equal(t, 1.5, w.CurrentTime())
}

func TestWall_Monotonic(t *testing.T) {
	w := NewWall()
	prev := w.CurrentTime()
	for i := 0; i < 100; i++ {
		cur := w.CurrentTime()
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
