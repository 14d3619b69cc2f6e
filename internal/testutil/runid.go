package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs issues "prefix-1", "prefix-2", ... so stored runs get
// predictable ids in tests.
//
// Unlike store.UUIDv7Generator, SequentialRunIDs can be reset for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. If prefix is empty, ids start
// with "test-run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements store.RunIDGenerator interface.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. The next Generate returns "prefix-1".
func (g *SequentialRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
