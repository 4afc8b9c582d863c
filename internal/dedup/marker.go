// Package dedup records which trigger messages have already been counted so a
// redelivered message is not counted twice.
package dedup

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type Marker interface {
	// Acquire 処理権を得られればtrue
	Acquire(ctx context.Context, msgID string) (bool, error)
	// Release gives the id back after a failed attempt so a redelivery can retry it.
	Release(ctx context.Context, msgID string) error
}

var _ Marker = (*LocalMarker)(nil)

// LocalMarker only dedups within one process.
type LocalMarker struct {
	cache *cache.Cache
}

func NewLocalMarker(ttl time.Duration) *LocalMarker {
	return &LocalMarker{cache: cache.New(ttl, ttl)}
}

func (c *LocalMarker) Acquire(ctx context.Context, msgID string) (bool, error) {
	err := c.cache.Add(msgID, struct{}{}, cache.DefaultExpiration)
	return err == nil, nil
}

func (c *LocalMarker) Release(ctx context.Context, msgID string) error {
	c.cache.Delete(msgID)
	return nil
}

var _ Marker = (*RedisMarker)(nil)

const redisMarkerPrefix = "counter-processed-check:"

type RedisMarker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisMarker(client redis.UniversalClient, ttl time.Duration) *RedisMarker {
	return &RedisMarker{client: client, ttl: ttl}
}

func (c *RedisMarker) Acquire(ctx context.Context, msgID string) (bool, error) {
	return c.client.SetNX(ctx, redisMarkerPrefix+msgID, "v", c.ttl).Result()
}

func (c *RedisMarker) Release(ctx context.Context, msgID string) error {
	return c.client.Del(ctx, redisMarkerPrefix+msgID).Err()
}
