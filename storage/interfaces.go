package storage

import (
	"context"

	"github.com/poiesic/mediasearch/core"
)

// MaxLookupBatch is the most ids a single RecordLookup.GetByIDs call accepts.
// Callers with more ids must split them.
const MaxLookupBatch = 10

// VectorIndex stores one embedding per record and answers similarity queries.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// Upsert creates or overwrites the entry stored under entry.ID.
	// Fails with ErrIndexWrite when the metadata lacks a title or createdAt.
	Upsert(ctx context.Context, entry *core.IndexedEntry) error

	// Query returns at most topK matches ordered by descending score.
	// A nil filter matches every entry. Fails with ErrIndexQuery.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]*core.Match, error)

	// Close releases resources held by the index.
	Close() error
}

// RecordLookup fetches records by id.
type RecordLookup interface {
	// GetByIDs returns the records of collection that exist among ids.
	// Missing ids are simply absent from the result.
	// Accepts at most MaxLookupBatch ids; more fails with ErrBatchTooLarge.
	// Other failures wrap ErrStore.
	GetByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error)
}

// RecordStore is the authoritative store of media records.
// The search path only reads from it; writes come from seeding and tests.
type RecordStore interface {
	RecordLookup

	// PutRecords writes records to collection. A record without an ID gets
	// core.IDFromContent of its title and description.
	// Returns the records with IDs populated.
	PutRecords(ctx context.Context, collection string, records ...*core.Record) ([]*core.Record, error)

	// ForEachRecord calls fn for every record in collection, in id order.
	// Iteration stops at the first error from fn, which is returned as-is.
	ForEachRecord(ctx context.Context, collection string, fn func(*core.Record) error) error

	// Close releases resources held by the store.
	Close() error
}
