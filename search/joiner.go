package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
	"golang.org/x/sync/errgroup"
)

// Joiner fetches records for a list of ids in bounded batches.
type Joiner struct {
	lookup    storage.RecordLookup
	batchSize int
	logger    *slog.Logger
}

// JoinerOption configures a Joiner.
type JoinerOption func(*Joiner) error

// WithBatchSize sets how many ids go into one lookup.
// It may lower storage.MaxLookupBatch but never raise it.
func WithBatchSize(size int) JoinerOption {
	return func(j *Joiner) error {
		if size < 1 || size > storage.MaxLookupBatch {
			return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidBatchSize, size, storage.MaxLookupBatch)
		}
		j.batchSize = size
		return nil
	}
}

// WithJoinerLogger sets a custom logger.
func WithJoinerLogger(logger *slog.Logger) JoinerOption {
	return func(j *Joiner) error {
		if logger == nil {
			logger = slog.Default()
		}
		j.logger = logger
		return nil
	}
}

// NewJoiner creates a joiner reading from lookup.
func NewJoiner(lookup storage.RecordLookup, opts ...JoinerOption) (*Joiner, error) {
	if lookup == nil {
		return nil, ErrRecordLookupRequired
	}
	j := &Joiner{
		lookup:    lookup,
		batchSize: storage.MaxLookupBatch,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	j.logger = j.logger.With("component", "joiner")
	return j, nil
}

// FetchByIDs returns the records of collection found among ids.
//
// The ids are split into consecutive chunks of the batch size and each chunk
// is looked up concurrently. Results are merged once every chunk has
// completed. Ids the store does not know are absent from the map. The first
// failing chunk cancels the others and its error is returned.
//
// The map is unordered; callers restore rank order from ids.
func (j *Joiner) FetchByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error) {
	out := make(map[string]*core.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	chunks := 0
	for start := 0; start < len(ids); start += j.batchSize {
		chunk := ids[start:min(start+j.batchSize, len(ids))]
		chunks++
		g.Go(func() error {
			found, err := j.lookup.GetByIDs(gctx, collection, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range chunk {
				if rec, ok := found[id]; ok && rec != nil {
					out[id] = rec
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		j.logger.Warn("record lookup failed", "collection", collection, "ids", len(ids), "chunks", chunks, "err", err)
		return nil, err
	}
	j.logger.Debug("records fetched", "collection", collection, "requested", len(ids), "found", len(out), "chunks", chunks)
	return out, nil
}
