package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	indexTable   = "media_index"
	recordsTable = "media_records"
)

// EnsureSchema creates the vector extension, both tables and the HNSW
// cosine index when they do not exist. dims fixes the embedding column width.
func EnsureSchema(ctx context.Context, db *sql.DB, dims int) error {
	if dims <= 0 {
		return errors.New("postgres schema: dimensions must be positive")
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, indexTable, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING hnsw (embedding vector_cosine_ops)`, indexTable, indexTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			doc JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`, recordsTable),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
