package redisstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/tckz/view-counter/internal/counter"
)

var _ counter.Store = (*Store)(nil)

// Store keeps each record as a string value under "<table>:<key>".
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func redisKey(table, key string) string {
	return table + ":" + key
}

func (s *Store) GetItem(ctx context.Context, table, key string) (counter.Record, error) {
	return get(ctx, s.client, table, key)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, table, key string) (counter.Record, error) {
	str, err := c.Get(ctx, redisKey(table, key)).Result()
	if errors.Is(err, redis.Nil) {
		return counter.Record{}, counter.ErrNotFound
	}
	if err != nil {
		return counter.Record{}, counter.Unavailable("redis.Get", err)
	}
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return counter.Record{}, counter.Malformed(key, "value=%q", str)
	}
	v, err = counter.CheckValue(key, v)
	if err != nil {
		return counter.Record{}, err
	}
	return counter.Record{Key: key, Value: v}, nil
}

// PutItem with a precondition uses WATCH/MULTI so a concurrent change of the key aborts the write.
func (s *Store) PutItem(ctx context.Context, table string, rec counter.Record, pre *counter.Precondition) error {
	k := redisKey(table, rec.Key)
	if pre == nil {
		if err := s.client.Set(ctx, k, rec.Value, 0).Err(); err != nil {
			return counter.Unavailable("redis.Set", err)
		}
		return nil
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := get(ctx, tx, table, rec.Key)
		exists := true
		if errors.Is(err, counter.ErrNotFound) {
			exists = false
		} else if err != nil {
			return err
		}
		if !pre.Satisfied(exists, cur.Value) {
			return counter.Conflict("redis.Watch", errors.New("value changed since read"))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, rec.Value, 0)
			return nil
		})
		return err
	}, k)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return counter.Conflict("redis.TxPipelined", err)
	case errors.Is(err, counter.ErrStoreWriteConflict), errors.Is(err, counter.ErrRecordMalformed), errors.Is(err, counter.ErrStoreUnavailable):
		return err
	default:
		return counter.Unavailable("redis.Watch", err)
	}
}
