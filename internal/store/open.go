// Package store opens the counter.Store selected by configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/counter"
	"github.com/tckz/view-counter/internal/store/dsstore"
	"github.com/tckz/view-counter/internal/store/dynamostore"
	"github.com/tckz/view-counter/internal/store/memstore"
	"github.com/tckz/view-counter/internal/store/redisstore"
)

// Open returns the store and a func releasing its client.
func Open(ctx context.Context, c *config.Config) (counter.Store, func() error, error) {
	nop := func() error { return nil }

	switch c.Backend {
	case config.BackendMemory:
		return memstore.New(), nop, nil
	case config.BackendDatastore:
		cl, err := datastore.NewClient(ctx, c.ProjectID)
		if err != nil {
			return nil, nil, counter.Unavailable("datastore.NewClient", err)
		}
		return dsstore.New(cl, c.DatastoreNamespace), cl.Close, nil
	case config.BackendDynamoDB:
		cl, err := dynamostore.NewClient(ctx, c.AWSRegion, c.DynamoDBEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return dynamostore.New(cl, c.KeyAttribute), nop, nil
	case config.BackendRedis:
		cl := NewRedisClient(c.RedisAddr)
		return redisstore.New(cl), cl.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend: %s", c.Backend)
	}
}

func NewRedisClient(addr string) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		DialTimeout:  time.Second * 2,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
		PoolSize:     200,
		PoolTimeout:  time.Second * 5,
	})
}

// NewService opens the configured store and wraps it in a counter.Service.
func NewService(ctx context.Context, c *config.Config, opts ...counter.Option) (*counter.Service, func() error, error) {
	st, closer, err := Open(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]counter.Option{
		counter.WithKey(c.Key),
		counter.WithGuardWrites(c.GuardWrites),
	}, opts...)
	svc, err := counter.NewService(st, c.Table, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return svc, closer, nil
}
