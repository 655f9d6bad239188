package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*UserCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewUserCache(client, time.Minute), mr
}

func TestUserCacheGetSet(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, UserSnapshot{ID: "u1", Username: "alice", Email: "a@x.com"}))
	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &UserSnapshot{ID: "u1", Username: "alice", Email: "a@x.com"}, got)

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "entry should expire after ttl")

	hits, misses := c.Counters()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestUserCacheMany(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetMany(ctx, []UserSnapshot{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	}))
	got, err := c.GetMany(ctx, []string{"u1", "u3", "u2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "bob", got["u2"].Username)

	require.NoError(t, c.Delete(ctx, "u1"))
	got, err = c.GetMany(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUserCacheDisabled(t *testing.T) {
	var c *UserCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, UserSnapshot{ID: "u1"}))
	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	many, err := NewUserCache(nil, 0).GetMany(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Empty(t, many)
}
