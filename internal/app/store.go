package app

import "context"

// Record is an opaque versioned document. Version increases by one on every
// successful conditional update.
type Record struct {
	ID      string
	Version int64
	Data    []byte
}

// RecordStore abstracts how quiz group and question documents are stored
// (in-memory, Redis, etc). Its conditional update is the only concurrency
// control the service relies on; there are no locks anywhere else.
type RecordStore interface {
	Get(ctx context.Context, id string) (Record, error)
	Create(ctx context.Context, id string, data []byte) error
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, data []byte) error
	Delete(ctx context.Context, id string) error
}
