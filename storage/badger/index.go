package badger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// VectorIndex implements storage.VectorIndex on BadgerDB with an exhaustive
// scan. Vectors are normalized on write so the dot product is the cosine
// similarity.
type VectorIndex struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a vector index on backend.
func NewVectorIndex(backend *Backend) storage.VectorIndex {
	return newVectorIndex(backend)
}

func newVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

// Close is a no-op; the Backend owns the database.
func (x *VectorIndex) Close() error {
	return nil
}

// Upsert creates or overwrites the entry stored under entry.ID.
func (x *VectorIndex) Upsert(ctx context.Context, entry *core.IndexedEntry) error {
	if err := storage.CheckEntry(entry); err != nil {
		return err
	}

	stored := core.IndexedEntry{
		ID:       entry.ID,
		Vector:   storage.NormalizeVector(entry.Vector),
		Metadata: entry.Metadata,
	}

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIndexKey(stored.ID), storage.MarshalIndexedEntry(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIndexWrite, err)
	}

	x.logger.Debug("upserted entry", "id", stored.ID, "dims", len(stored.Vector))
	return nil
}

// Query scores every entry that passes filter and returns the topK best.
// Ties are broken by id so results are stable across calls. A query whose
// length differs from a scored entry fails with storage.ErrDimensionMismatch.
func (x *VectorIndex) Query(ctx context.Context, vector []float32, topK int, filter storage.Filter) ([]*core.Match, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
	}
	if topK <= 0 {
		return []*core.Match{}, nil
	}

	query := storage.NormalizeVector(vector)
	var matches []*core.Match

	err := x.backend.scanPrefix([]byte(indexEntryPrefix), func(_, val []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := storage.UnmarshalIndexedEntry(val)
		if err != nil {
			return err
		}
		if len(entry.Vector) == 0 || !filter.Matches(entry.Metadata) {
			return nil
		}
		if len(entry.Vector) != len(query) {
			return fmt.Errorf("%w: query has %d, entry %s has %d",
				storage.ErrDimensionMismatch, len(query), entry.ID, len(entry.Vector))
		}
		matches = append(matches, &core.Match{
			ID:       entry.ID,
			Score:    storage.DotProduct(query, entry.Vector),
			Metadata: entry.Metadata,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
	}

	slices.SortFunc(matches, func(a, b *core.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []*core.Match{}
	}
	return matches, nil
}
