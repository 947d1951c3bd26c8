package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// VectorIndex implements storage.VectorIndex with pgvector.
// Scores are cosine similarity, 1 - cosine distance.
type VectorIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex wraps db. The schema must already exist (see EnsureSchema).
func NewVectorIndex(db *sql.DB) storage.VectorIndex {
	return &VectorIndex{
		db:     db,
		logger: slog.Default().With("component", "pgvector-index"),
	}
}

// Close closes the underlying connection pool.
func (x *VectorIndex) Close() error {
	return x.db.Close()
}

// Upsert creates or overwrites the row stored under entry.ID.
func (x *VectorIndex) Upsert(ctx context.Context, entry *core.IndexedEntry) error {
	if err := storage.CheckEntry(entry); err != nil {
		return err
	}

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %w", storage.ErrIndexWrite, err)
	}

	query := `
		INSERT INTO ` + indexTable + ` (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = now()
	`
	if _, err := x.db.ExecContext(ctx, query, entry.ID, pgvector.NewVector(entry.Vector), meta); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIndexWrite, err)
	}
	return nil
}

// Query returns the topK nearest rows that pass filter.
func (x *VectorIndex) Query(ctx context.Context, vector []float32, topK int, filter storage.Filter) ([]*core.Match, error) {
	query, args, err := buildQuery(filter, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
	}
	if topK <= 0 {
		return []*core.Match{}, nil
	}
	args = append([]any{pgvector.NewVector(vector)}, args...)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
	}
	defer rows.Close()

	matches := []*core.Match{}
	for rows.Next() {
		var (
			m    core.Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
	}

	x.logger.Debug("query complete", "topK", topK, "matches", len(matches))
	return matches, nil
}
