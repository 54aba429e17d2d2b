package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_HitBeforeExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "dashboard:admin", `{"open":3}`, 30*time.Second))

	now = now.Add(29 * time.Second)
	value, ok, err := c.Get(ctx, "dashboard:admin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"open":3}`, value)
}

func TestMemoryCache_MissAfterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "dashboard:admin", `{"open":3}`, 30*time.Second))

	now = now.Add(31 * time.Second)
	_, ok, err := c.Get(ctx, "dashboard:admin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_MissOnAbsentKey(t *testing.T) {
	c := NewMemoryCache(nil)

	_, ok, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))

	require.NoError(t, c.Invalidate(ctx, "a", "b"))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryCache_SetOverwrites(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "old", time.Minute))
	require.NoError(t, c.Set(ctx, "a", "new", time.Minute))

	value, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", value)
}
