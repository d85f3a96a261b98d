package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	_, ok := c.Get("m", "cat")
	assert.False(t, ok)

	c.Put("m", "cat", []float32{1})
	v, ok := c.Get("m", "cat")
	require.True(t, ok)
	assert.Equal(t, []float32{1}, v)

	_, ok = c.Get("other-model", "cat")
	assert.False(t, ok, "entries are scoped by model")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})

	_, _ = c.Get("m", "a")
	c.Put("m", "c", []float32{3})

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("m", "b")
	assert.False(t, ok)
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
}

func TestQueryCache_Expires(t *testing.T) {
	c := NewQueryCache(4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("m", "a", []float32{1})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("m", "a")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(4, time.Minute)
	c.Put("m", "a", []float32{1})
	c.Invalidate()
	assert.Zero(t, c.Size())
}

type countingEmbedder struct {
	calls int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) Dimension() int    { return 1 }
func (e *countingEmbedder) ModelName() string { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, NewQueryCache(8, time.Minute))
	ctx := context.Background()

	v1, err := e.Embed(ctx, "cat")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "cat")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, e.Dimension())
	assert.Equal(t, "counting", e.ModelName())
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	e := NewCachedEmbedder(inner, NewQueryCache(8, time.Minute))

	_, err := e.Embed(context.Background(), "cat")
	assert.Error(t, err)
	_, err = e.Embed(context.Background(), "cat")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
