//nolint:funlen // ok for tests
package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/pkg/utils/cache"
)

type counter struct {
	calls map[string]int
}

func (c *counter) load(ctx context.Context, key string) (*int, error) {
	if key == "bad" {
		return nil, errors.New("cannot load")
	}
	c.calls[key]++
	v := len(key)
	return &v, nil
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	cnt := &counter{calls: map[string]int{}}
	c := New(WithLoader[string, int](cnt.load))

	v, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, *v)
	_, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt.calls["abc"])

	_, err = c.Get(ctx, "bad")
	assert.Error(t, err)
	_, err = c.Get(ctx, "bad")
	assert.Error(t, err, "errors are not cached")
}

func TestNoLoader(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	_, err := c.Get(ctx, "x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	v := 42
	c.Set(ctx, "x", &v)
	got, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 42, *got)
}

func TestExpiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cnt := &counter{calls: map[string]int{}}
	c := New(
		WithLoader[string, int](cnt.load),
		WithExpiration[string, int](time.Minute),
		withClock[string, int](func() time.Time { return now }),
	)
	_, _ = c.Get(ctx, "a")
	now = now.Add(30 * time.Second)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 1, cnt.calls["a"])
	now = now.Add(time.Minute)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 2, cnt.calls["a"])
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	cnt := &counter{calls: map[string]int{}}
	c := New(
		WithLoader[string, int](cnt.load),
		WithExpiration[string, int](0),
	)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "bb")
	c.Invalidate(ctx, "a")
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "bb")
	assert.Equal(t, 2, cnt.calls["a"])
	assert.Equal(t, 1, cnt.calls["bb"])

	c.InvalidateAll(ctx)
	_, _ = c.Get(ctx, "bb")
	assert.Equal(t, 2, cnt.calls["bb"])
}
