package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/tckz/view-counter/internal/counter"
)

var _ counter.Store = (*Store)(nil)

var errPrecondition = errors.New("precondition failed")

// Store keeps records in process memory. Records never expire.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func New() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, 0)}
}

func itemKey(table, key string) string {
	return table + "\x00" + key
}

func (s *Store) GetItem(ctx context.Context, table, key string) (counter.Record, error) {
	if err := ctx.Err(); err != nil {
		return counter.Record{}, counter.Unavailable("memstore.GetItem", err)
	}
	v, ok := s.cache.Get(itemKey(table, key))
	if !ok {
		return counter.Record{}, counter.ErrNotFound
	}
	return counter.Record{Key: key, Value: v.(int64)}, nil
}

func (s *Store) PutItem(ctx context.Context, table string, rec counter.Record, pre *counter.Precondition) error {
	if err := ctx.Err(); err != nil {
		return counter.Unavailable("memstore.PutItem", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := itemKey(table, rec.Key)
	if pre != nil {
		v, ok := s.cache.Get(k)
		var cur int64
		if ok {
			cur = v.(int64)
		}
		if !pre.Satisfied(ok, cur) {
			return counter.Conflict("memstore.PutItem", errPrecondition)
		}
	}
	s.cache.Set(k, rec.Value, cache.NoExpiration)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
