package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// RecordStore implements storage.RecordStore on a jsonb document table.
type RecordStore struct {
	db *sql.DB
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore wraps db. The schema must already exist (see EnsureSchema).
func NewRecordStore(db *sql.DB) storage.RecordStore {
	return &RecordStore{db: db}
}

// Close closes the underlying connection pool.
func (r *RecordStore) Close() error {
	return r.db.Close()
}

// GetByIDs returns the records of collection that exist among ids.
func (r *RecordStore) GetByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error) {
	if len(ids) > storage.MaxLookupBatch {
		return nil, fmt.Errorf("%w: %w: %d ids, limit %d", storage.ErrStore, storage.ErrBatchTooLarge, len(ids), storage.MaxLookupBatch)
	}

	found := make(map[string]*core.Record, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, doc FROM `+recordsTable+` WHERE collection = $1 AND id = ANY($2)`,
		collection, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		found[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	return found, nil
}

// PutRecords upserts records into collection in one transaction.
func (r *RecordStore) PutRecords(ctx context.Context, collection string, records ...*core.Record) ([]*core.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if record.ID == "" {
			record.ID = core.IDFromContent(record.Title + "\n" + record.Description)
		}
		doc, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+recordsTable+` (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`,
			collection, record.ID, doc); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	return records, nil
}

// ForEachRecord calls fn for every record in collection, in id order.
func (r *RecordStore) ForEachRecord(ctx context.Context, collection string, fn func(*core.Record) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, doc FROM `+recordsTable+` WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*core.Record, error) {
	var (
		id  string
		doc []byte
	)
	if err := rows.Scan(&id, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	var record core.Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", storage.ErrStore, storage.ErrSerializationFailed, err)
	}
	record.ID = id
	return &record, nil
}
