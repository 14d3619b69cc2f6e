package automation

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()

	tl, err := r.Create("gain", WithBaseValue(1))
	require.NoError(t, err)
	require.NotNil(t, tl)

	got, ok := r.Get("gain")
	require.True(t, ok)
	assert.Same(t, tl, got)
	assert.Equal(t, 1.0, got.BaseValue())

	_, ok = r.Get("pan")
	assert.False(t, ok)
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("gain")
	require.NoError(t, err)

	_, err = r.Create("  gain ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateName))
}

func TestRegistry_EmptyName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_NormalizesNames(t *testing.T) {
	r := NewRegistry()

	precomposed := "caf\u00e9"
	decomposed := "cafe\u0301"

	tl, err := r.Create(decomposed)
	require.NoError(t, err)

	got, ok := r.Get(precomposed)
	require.True(t, ok)
	assert.Same(t, tl, got)
	assert.Equal(t, []string{precomposed}, r.Names())
}

func TestRegistry_NamesAndRemove(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"gain", "pan", "cutoff"} {
		_, err := r.Create(n)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"gain", "pan", "cutoff"}, r.Names())

	r.Remove("pan")
	r.Remove("missing")
	assert.Equal(t, []string{"gain", "cutoff"}, r.Names())
	assert.Equal(t, 2, r.Len())

	_, err := r.Create("pan")
	require.NoError(t, err, "a removed name can be reused")
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Create(fmt.Sprintf("p%d", i%10))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, r.Len())
}
