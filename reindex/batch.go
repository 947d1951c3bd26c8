package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// BatchResult counts what happened to one batch.
type BatchResult struct {
	Indexed int
	Skipped int
}

// BatchProcessor embeds and indexes batches of records.
type BatchProcessor struct {
	index           storage.VectorIndex
	embedder        ai.Embedder
	requireDuration bool
	maxRetries      int
	retryBaseDelay  time.Duration
	logger          *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding and index calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, requireDuration bool, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:           index,
		embedder:        embedder,
		requireDuration: requireDuration,
		maxRetries:      maxRetries,
		retryBaseDelay:  retryBaseDelay,
		logger:          slog.Default().With("component", "reindex"),
	}
}

// Process validates the batch, embeds the descriptions of the valid records
// in one call and upserts one entry per record. Invalid records are skipped.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Record) (BatchResult, error) {
	var result BatchResult

	valid := make([]*core.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			result.Skipped++
			continue
		}
		if err := core.ValidateRecord(rec, bp.requireDuration); err != nil {
			bp.logger.Warn("skipping invalid record", "id", rec.ID, "missing", core.MissingFields(rec, bp.requireDuration))
			result.Skipped++
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return result, nil
	}

	texts := make([]string, len(valid))
	for i, rec := range valid {
		texts[i] = rec.Description
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(vectors) != len(valid) {
		return result, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(valid), len(vectors))
	}

	for i, rec := range valid {
		if len(vectors[i]) == 0 {
			bp.logger.Warn("skipping record with empty embedding", "id", rec.ID)
			result.Skipped++
			continue
		}
		entry := &core.IndexedEntry{
			ID:       rec.ID,
			Vector:   vectors[i],
			Metadata: core.MetadataFromRecord(rec),
		}
		err := RetryWithBackoff(ctx, func() error {
			return bp.index.Upsert(ctx, entry)
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			return result, fmt.Errorf("failed to index record %s: %w", rec.ID, err)
		}
		result.Indexed++
	}

	return result, nil
}
