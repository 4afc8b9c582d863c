// Package counter increments and reads a single view counter held in a key-value store.
package counter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultKey = "viewCount"
)

type options struct {
	key         string
	guardWrites bool
	logger      *zap.Logger
}

type Option func(o *options)

func WithKey(key string) Option {
	return Option(func(o *options) {
		o.key = key
	})
}

// WithGuardWrites makes every write conditional on the state read just before it.
func WithGuardWrites(b bool) Option {
	return Option(func(o *options) {
		o.guardWrites = b
	})
}

func WithLogger(zl *zap.Logger) Option {
	return Option(func(o *options) {
		o.logger = zl
	})
}

// Service does a plain read-then-write against Store. Concurrent callers can lose
// updates unless guard writes are enabled, in which case the loser gets ErrStoreWriteConflict.
type Service struct {
	store       Store
	table       string
	key         string
	guardWrites bool
	logger      *zap.Logger
}

func NewService(store Store, table string, opts ...Option) (*Service, error) {
	options := options{
		key:    DefaultKey,
		logger: zap.NewNop(),
	}
	for _, e := range opts {
		e(&options)
	}

	if store == nil {
		return nil, errors.New("store must be specified")
	}
	if table == "" {
		return nil, errors.New("table must be specified")
	}
	if options.key == "" {
		return nil, errors.New("key must be specified")
	}

	return &Service{
		store:       store,
		table:       table,
		key:         options.key,
		guardWrites: options.guardWrites,
		logger:      options.logger,
	}, nil
}

func (s *Service) Table() string { return s.table }
func (s *Service) Key() string   { return s.key }

// HandleRequest performs one increment and returns the value written.
// The request payload is accepted for the trigger's sake and otherwise ignored.
func (s *Service) HandleRequest(ctx context.Context, _ any) (int64, error) {
	logger := s.logger.With(zap.String("invocation", uuid.New().String()), zap.String("table", s.table), zap.String("key", s.key))

	cur, exists, err := s.read(ctx)
	if err != nil {
		logger.Warn("read failed", zap.Error(err))
		return 0, err
	}

	if cur == math.MaxInt64 {
		err := Malformed(s.key, "value %d cannot be incremented", cur)
		logger.Warn("increment refused", zap.Error(err))
		return 0, err
	}

	var pre *Precondition
	if s.guardWrites {
		pre = &Precondition{Exists: exists, Value: cur}
	}

	next := cur + 1
	if err := s.store.PutItem(ctx, s.table, Record{Key: s.key, Value: next}, pre); err != nil {
		logger.Warn("write failed", zap.Int64("value", next), zap.Error(err))
		return 0, fmt.Errorf("PutItem: %w", err)
	}

	logger.Debug("incremented", zap.Int64("value", next))
	return next, nil
}

// Read returns the current value without writing. Absent reads as 0.
func (s *Service) Read(ctx context.Context) (int64, error) {
	v, _, err := s.read(ctx)
	return v, err
}

func (s *Service) read(ctx context.Context) (int64, bool, error) {
	rec, err := s.store.GetItem(ctx, s.table, s.key)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("GetItem: %w", err)
	}
	v, err := CheckValue(s.key, rec.Value)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
