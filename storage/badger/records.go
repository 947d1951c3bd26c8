package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// RecordStore implements storage.RecordStore for BadgerDB.
// Records are stored as JSON documents keyed by collection and id.
type RecordStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a record store on backend.
func NewRecordStore(backend *Backend) storage.RecordStore {
	return newRecordStore(backend)
}

func newRecordStore(backend *Backend) *RecordStore {
	return &RecordStore{
		backend: backend,
		logger:  slog.Default().With("component", "badger-records"),
	}
}

// Close is a no-op; the Backend owns the database.
func (r *RecordStore) Close() error {
	return nil
}

// GetByIDs returns the records of collection that exist among ids.
func (r *RecordStore) GetByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error) {
	if len(ids) > storage.MaxLookupBatch {
		return nil, fmt.Errorf("%w: %w: %d ids, limit %d", storage.ErrStore, storage.ErrBatchTooLarge, len(ids), storage.MaxLookupBatch)
	}

	found := make(map[string]*core.Record, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := tx.Get(makeRecordKey(collection, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var record core.Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			record.ID = id
			found[id] = &record
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	return found, nil
}

// PutRecords writes records to collection in one transaction.
func (r *RecordStore) PutRecords(ctx context.Context, collection string, records ...*core.Record) ([]*core.Record, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.ID == "" {
				record.ID = core.IDFromContent(record.Title + "\n" + record.Description)
			}
			value, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(collection, record.ID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}

	r.logger.Debug("stored records", "collection", collection, "count", len(records))
	return records, nil
}

// ForEachRecord calls fn for every record in collection, in id order.
func (r *RecordStore) ForEachRecord(ctx context.Context, collection string, fn func(*core.Record) error) error {
	prefix := makeRecordCollectionPrefix(collection)

	var fnErr error
	err := r.backend.scanPrefix(prefix, func(key, val []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record core.Record
		if err := json.Unmarshal(val, &record); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		record.ID = string(key[len(prefix):])
		if err := fn(&record); err != nil {
			fnErr = err
			return err
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStore, err)
	}
	return nil
}
