package dsstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/view-counter/internal/counter"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDecodeCount(t *testing.T) {
	tests := []struct {
		name    string
		pl      datastore.PropertyList
		want    int64
		wantErr error
	}{
		{
			name: "int",
			pl:   datastore.PropertyList{{Name: "stats", Value: "viewCount"}, {Name: "viewCount", Value: int64(7)}},
			want: 7,
		},
		{
			name:    "missing",
			pl:      datastore.PropertyList{{Name: "other", Value: int64(7)}},
			wantErr: counter.ErrRecordMalformed,
		},
		{
			name:    "string",
			pl:      datastore.PropertyList{{Name: "viewCount", Value: "7"}},
			wantErr: counter.ErrRecordMalformed,
		},
		{
			name:    "negative",
			pl:      datastore.PropertyList{{Name: "viewCount", Value: int64(-1)}},
			wantErr: counter.ErrRecordMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCount("viewCount", tt.pl)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("c", datastore.ErrConcurrentTransaction), counter.ErrStoreWriteConflict)
	assert.ErrorIs(t, classify("c", status.Error(codes.Aborted, "too much contention")), counter.ErrStoreWriteConflict)
	assert.ErrorIs(t, classify("c", status.Error(codes.Unavailable, "connection refused")), counter.ErrStoreUnavailable)
	assert.ErrorIs(t, classify("c", errors.New("boom")), counter.ErrStoreUnavailable)
}

type stubClient struct {
	Client
	getErr error
	puts   int
	txErr  error
	txOpts int
}

func (c *stubClient) RunInTransaction(ctx context.Context, f func(tx *datastore.Transaction) error, opts ...datastore.TransactionOption) (*datastore.Commit, error) {
	c.txOpts = len(opts)
	return nil, c.txErr
}

func (c *stubClient) Get(ctx context.Context, key *datastore.Key, dst interface{}) error {
	return c.getErr
}

func (c *stubClient) Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error) {
	c.puts++
	return key, nil
}

func TestStore_GetItem_Errors(t *testing.T) {
	s := New(&stubClient{getErr: datastore.ErrNoSuchEntity}, "")
	_, err := s.GetItem(context.Background(), "stats", "viewCount")
	assert.ErrorIs(t, err, counter.ErrNotFound)

	st := &stubClient{getErr: status.Error(codes.Unavailable, "no route")}
	svc, err := counter.NewService(New(st, ""), "stats")
	require.NoError(t, err)
	_, err = svc.HandleRequest(context.Background(), nil)
	assert.ErrorIs(t, err, counter.ErrStoreUnavailable)
	assert.Zero(t, st.puts)
}

func TestStore_PutItem_GuardedErrors(t *testing.T) {
	tests := []struct {
		name    string
		txErr   error
		wantErr error
	}{
		{name: "concurrent transaction", txErr: datastore.ErrConcurrentTransaction, wantErr: counter.ErrStoreWriteConflict},
		{name: "aborted", txErr: status.Error(codes.Aborted, "too much contention"), wantErr: counter.ErrStoreWriteConflict},
		{name: "value changed", txErr: errPrecondition, wantErr: counter.ErrStoreWriteConflict},
		{name: "malformed", txErr: counter.Malformed("viewCount", "property missing"), wantErr: counter.ErrRecordMalformed},
		{name: "unavailable", txErr: status.Error(codes.Unavailable, "no route"), wantErr: counter.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &stubClient{txErr: tt.txErr}
			s := New(st, "")
			err := s.PutItem(context.Background(), "stats", counter.Record{Key: "viewCount", Value: 2}, &counter.Precondition{Exists: true, Value: 1})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, st.txOpts, "single attempt option")
			assert.Zero(t, st.puts, "guarded write stays inside the transaction")
		})
	}
}

type fakeTx struct {
	pl     datastore.PropertyList
	getErr error
	put    *datastore.PropertyList
}

func (tx *fakeTx) Get(key *datastore.Key, dst interface{}) error {
	if tx.getErr != nil {
		return tx.getErr
	}
	*dst.(*datastore.PropertyList) = tx.pl
	return nil
}

func (tx *fakeTx) Put(key *datastore.Key, src interface{}) (*datastore.PendingKey, error) {
	tx.put = src.(*datastore.PropertyList)
	return nil, nil
}

func TestPutIfSatisfied(t *testing.T) {
	key := datastore.NameKey("stats", "viewCount", nil)
	rec := counter.Record{Key: "viewCount", Value: 2}

	tx := &fakeTx{pl: datastore.PropertyList{{Name: "viewCount", Value: int64(1)}}}
	require.NoError(t, putIfSatisfied(tx, key, rec, &counter.Precondition{Exists: true, Value: 1}))
	require.NotNil(t, tx.put)
	assert.Equal(t, int64(2), (*tx.put)[0].Value)

	tx = &fakeTx{pl: datastore.PropertyList{{Name: "viewCount", Value: int64(5)}}}
	err := putIfSatisfied(tx, key, rec, &counter.Precondition{Exists: true, Value: 1})
	assert.ErrorIs(t, err, errPrecondition)
	assert.Nil(t, tx.put)

	tx = &fakeTx{pl: datastore.PropertyList{{Name: "viewCount", Value: int64(1)}}}
	err = putIfSatisfied(tx, key, counter.Record{Key: "viewCount", Value: 1}, &counter.Precondition{})
	assert.ErrorIs(t, err, errPrecondition, "create over an existing entity")

	tx = &fakeTx{getErr: datastore.ErrNoSuchEntity}
	require.NoError(t, putIfSatisfied(tx, key, counter.Record{Key: "viewCount", Value: 1}, &counter.Precondition{}))
	require.NotNil(t, tx.put)

	tx = &fakeTx{pl: datastore.PropertyList{{Name: "viewCount", Value: "x"}}}
	err = putIfSatisfied(tx, key, rec, &counter.Precondition{Exists: true, Value: 1})
	assert.ErrorIs(t, err, counter.ErrRecordMalformed)
	assert.Nil(t, tx.put)
}

func TestStore_EntityKey(t *testing.T) {
	s := New(nil, "ns1")
	k := s.entityKey("stats", "viewCount")
	assert.Equal(t, "stats", k.Kind)
	assert.Equal(t, "viewCount", k.Name)
	assert.Equal(t, "ns1", k.Namespace)
	assert.Nil(t, k.Parent)
}

// Runs against the Datastore emulator when DATASTORE_EMULATOR_HOST is set.
func TestStore_Emulator(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	cl, err := datastore.NewClient(ctx, "view-counter-test")
	require.NoError(t, err)
	defer cl.Close()

	s := New(cl, "test-"+uuid.New().String())
	svc, err := counter.NewService(s, "stats", counter.WithGuardWrites(true))
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		n, err := svc.HandleRequest(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	err = s.PutItem(ctx, "stats", counter.Record{Key: "viewCount", Value: 9}, &counter.Precondition{Exists: true, Value: 1})
	assert.ErrorIs(t, err, counter.ErrStoreWriteConflict)

	rec, err := s.GetItem(ctx, "stats", "viewCount")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rec.Value)
}
