package counter

import (
	"context"
)

// Record is a single counter item.
type Record struct {
	Key   string
	Value int64
}

// Precondition restricts a write to the state observed by a previous read.
type Precondition struct {
	// Exists is false when the record was absent at read time.
	Exists bool
	Value  int64
}

// Store is the key-value contract a backend must satisfy.
// GetItem returns ErrNotFound when the record is absent.
// PutItem with a nil Precondition is an unconditional write.
type Store interface {
	GetItem(ctx context.Context, table, key string) (Record, error)
	PutItem(ctx context.Context, table string, rec Record, pre *Precondition) error
}

// Satisfied reports whether a record currently in state (exists, value) still matches p.
func (p *Precondition) Satisfied(exists bool, value int64) bool {
	if p == nil {
		return true
	}
	if p.Exists != exists {
		return false
	}
	return !exists || p.Value == value
}
