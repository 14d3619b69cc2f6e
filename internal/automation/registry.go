package automation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyName is returned when a timeline name is blank.
	ErrEmptyName = errors.New("timeline name is empty")

	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("timeline name already registered")
)

// Registry maps parameter names to their timelines.
//
// Names are NFC-normalized and trimmed, so "café" typed with decomposed and
// precomposed characters resolves to one timeline.
//
// Thread-safety: Registry is safe for concurrent use. The timelines it hands
// out are not.
type Registry struct {
	mu        sync.RWMutex
	timelines map[string]*Timeline
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		timelines: make(map[string]*Timeline),
	}
}

// NormalizeName returns the canonical form of a parameter name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Create registers a new timeline under name.
func (r *Registry) Create(name string, opts ...Option) (*Timeline, error) {
	key := NormalizeName(name)
	if key == "" {
		return nil, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.timelines[key]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, key)
	}
	tl := New(opts...)
	r.timelines[key] = tl
	r.order = append(r.order, key)
	return tl, nil
}

// Get returns the timeline registered under name.
func (r *Registry) Get(name string) (*Timeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tl, ok := r.timelines[NormalizeName(name)]
	return tl, ok
}

// Remove drops the timeline registered under name. Unknown names are ignored.
func (r *Registry) Remove(name string) {
	key := NormalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.timelines[key]; !ok {
		return
	}
	delete(r.timelines, key)
	for i, n := range r.order {
		if n == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Names returns registered names in creation order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered timelines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
