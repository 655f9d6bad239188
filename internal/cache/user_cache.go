package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// UserSnapshot is the public part of a user kept in redis. It never carries
// the password hash or reset state.
type UserSnapshot struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserCache caches user snapshots by id. A nil *UserCache (or one built with a
// nil client) is a valid, disabled cache: reads miss, writes are dropped.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserCache{client: client, ttl: ttl}
}

func (c *UserCache) enabled() bool { return c != nil && c.client != nil }

func userKey(id string) string { return fmt.Sprintf("user:%s", id) }

// Get returns (nil, nil) on a miss.
func (c *UserCache) Get(ctx context.Context, id string) (*UserSnapshot, error) {
	if !c.enabled() {
		return nil, nil
	}
	data, err := c.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap UserSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.misses.Add(1)
		return nil, nil
	}
	c.hits.Add(1)
	return &snap, nil
}

func (c *UserCache) Set(ctx context.Context, snap UserSnapshot) error {
	if !c.enabled() {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userKey(snap.ID), payload, c.ttl).Err()
}

// GetMany loads several snapshots with one MGET; missing ids are absent from the map.
func (c *UserCache) GetMany(ctx context.Context, ids []string) (map[string]UserSnapshot, error) {
	out := make(map[string]UserSnapshot, len(ids))
	if !c.enabled() || len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			c.misses.Add(1)
			continue
		}
		var snap UserSnapshot
		if uErr := json.Unmarshal([]byte(str), &snap); uErr == nil {
			out[ids[i]] = snap
			c.hits.Add(1)
		}
	}
	return out, nil
}

// SetMany writes snapshots in one pipeline.
func (c *UserCache) SetMany(ctx context.Context, snaps []UserSnapshot) error {
	if !c.enabled() || len(snaps) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, s := range snaps {
		payload, err := json.Marshal(s)
		if err != nil {
			return err
		}
		pipe.Set(ctx, userKey(s.ID), payload, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *UserCache) Delete(ctx context.Context, id string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, userKey(id)).Err()
}

// Counters reports hit/miss totals since start.
func (c *UserCache) Counters() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
