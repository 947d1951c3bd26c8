package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// Ingester embeds records and writes them to the vector index.
type Ingester struct {
	embedder        ai.Embedder
	index           storage.VectorIndex
	requireDuration bool
	logger          *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester) error

// WithDurationRequired makes a missing duration a validation failure.
// Default is false: records without a duration are indexed without one.
func WithDurationRequired(required bool) Option {
	return func(i *Ingester) error {
		i.requireDuration = required
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIngester creates an ingester writing to index.
func NewIngester(embedder ai.Embedder, index storage.VectorIndex, opts ...Option) (*Ingester, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	i := &Ingester{
		embedder: embedder,
		index:    index,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "ingester")
	return i, nil
}

// Process validates record, embeds its description and upserts the entry
// under id. Validation failures wrap core.ErrInvalidRecord and have no side
// effects. Embedding failures wrap ai.ErrEmbedding, index failures
// storage.ErrIndexWrite; neither is retried.
func (i *Ingester) Process(ctx context.Context, id string, record *core.Record) error {
	if id == "" {
		i.logger.Warn("skipping record without id")
		return fmt.Errorf("%w: missing id", core.ErrInvalidRecord)
	}
	if err := core.ValidateRecord(record, i.requireDuration); err != nil {
		i.logger.Warn("skipping invalid record", "id", id,
			"missing", core.MissingFields(record, i.requireDuration))
		return err
	}

	vector, err := i.embedder.EmbedText(ctx, record.Description)
	if err != nil {
		i.logger.Error("failed to embed description", "id", id, "err", err)
		return fmt.Errorf("%w: record %s: %w", ai.ErrEmbedding, id, err)
	}
	if len(vector) == 0 {
		i.logger.Error("embedder returned an empty vector", "id", id)
		return fmt.Errorf("%w: record %s: %w", ai.ErrEmbedding, id, ai.ErrNoEmbedding)
	}

	entry := &core.IndexedEntry{
		ID:       id,
		Vector:   vector,
		Metadata: core.MetadataFromRecord(record),
	}
	if err := i.index.Upsert(ctx, entry); err != nil {
		i.logger.Error("failed to upsert entry", "id", id, "err", err)
		return fmt.Errorf("%w: record %s: %w", storage.ErrIndexWrite, id, err)
	}

	i.logger.Info("indexed record", "id", id, "dims", len(vector))
	return nil
}
