package dsstore

import (
	"context"
	"errors"

	"cloud.google.com/go/datastore"
	"github.com/tckz/view-counter/internal/counter"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is the subset of *datastore.Client used by Store.
type Client interface {
	Get(ctx context.Context, key *datastore.Key, dst interface{}) error
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	RunInTransaction(ctx context.Context, f func(tx *datastore.Transaction) error, opts ...datastore.TransactionOption) (*datastore.Commit, error)
}

var _ Client = (*datastore.Client)(nil)

var _ counter.Store = (*Store)(nil)

// Store maps a table to a kind and a counter key to a named key.
// The count lives in a property named after the key.
type Store struct {
	client    Client
	namespace string
}

func New(client Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) entityKey(table, key string) *datastore.Key {
	k := datastore.NameKey(table, key, nil)
	k.Namespace = s.namespace
	return k
}

func (s *Store) GetItem(ctx context.Context, table, key string) (counter.Record, error) {
	var pl datastore.PropertyList
	if err := s.client.Get(ctx, s.entityKey(table, key), &pl); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return counter.Record{}, counter.ErrNotFound
		}
		return counter.Record{}, classify("client.Get", err)
	}
	v, err := decodeCount(key, pl)
	if err != nil {
		return counter.Record{}, err
	}
	return counter.Record{Key: key, Value: v}, nil
}

func decodeCount(key string, pl datastore.PropertyList) (int64, error) {
	for _, p := range pl {
		if p.Name != key {
			continue
		}
		v, ok := p.Value.(int64)
		if !ok {
			return 0, counter.Malformed(key, "property type %T", p.Value)
		}
		return counter.CheckValue(key, v)
	}
	return 0, counter.Malformed(key, "property missing")
}

func encodeCount(rec counter.Record) *datastore.PropertyList {
	return &datastore.PropertyList{
		{Name: rec.Key, Value: rec.Value},
	}
}

var errPrecondition = errors.New("value changed since read")

// PutItem with a precondition runs a single-attempt transaction; losing a contention
// is reported instead of retried.
func (s *Store) PutItem(ctx context.Context, table string, rec counter.Record, pre *counter.Precondition) error {
	key := s.entityKey(table, rec.Key)
	if pre == nil {
		if _, err := s.client.Put(ctx, key, encodeCount(rec)); err != nil {
			return classify("client.Put", err)
		}
		return nil
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		return putIfSatisfied(tx, key, rec, pre)
	}, datastore.MaxAttempts(1))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPrecondition):
		return counter.Conflict("tx.Put", err)
	case errors.Is(err, counter.ErrRecordMalformed):
		return err
	default:
		return classify("client.RunInTransaction", err)
	}
}

// txGetPutter is the part of *datastore.Transaction used inside a guarded write.
type txGetPutter interface {
	Get(key *datastore.Key, dst interface{}) error
	Put(key *datastore.Key, src interface{}) (*datastore.PendingKey, error)
}

var _ txGetPutter = (*datastore.Transaction)(nil)

func putIfSatisfied(tx txGetPutter, key *datastore.Key, rec counter.Record, pre *counter.Precondition) error {
	var pl datastore.PropertyList
	exists := true
	var cur int64
	err := tx.Get(key, &pl)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		exists = false
	} else if err != nil {
		return err
	} else if cur, err = decodeCount(rec.Key, pl); err != nil {
		return err
	}

	if !pre.Satisfied(exists, cur) {
		return errPrecondition
	}
	_, err = tx.Put(key, encodeCount(rec))
	return err
}

func classify(call string, err error) error {
	if errors.Is(err, datastore.ErrConcurrentTransaction) || status.Code(err) == codes.Aborted {
		return counter.Conflict(call, err)
	}
	return counter.Unavailable(call, err)
}
