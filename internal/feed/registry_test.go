package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()

	f := New(Config{ID: "a"})
	r.Add(f)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, f, got)

	r.Remove("a")
	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrFeedNotFound)
	assert.True(t, f.Disposed(), "remove disposes the feed")
}

func TestRegistryRemoveUnknownIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Remove("missing")
}

func TestRegistryReplaceDisposesOld(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(r.Clear)

	first := New(Config{ID: "a"})
	second := New(Config{ID: "a"})
	r.Add(first)
	r.Add(second)

	assert.True(t, first.Disposed())
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistryClearDisposesAll(t *testing.T) {
	r := NewRegistry()
	f := New(Config{ID: "a"})
	r.Add(f)

	r.Clear()

	assert.True(t, f.Disposed())
	assert.Empty(t, r.List())
}

func TestRegistryListSortedByID(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(r.Clear)
	for _, id := range []string{"c", "a", "b"} {
		r.Add(New(Config{ID: id}))
	}

	var ids []string
	for _, f := range r.List() {
		ids = append(ids, f.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
