// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"

	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// RecordIterator walks the records of one collection in batches.
type RecordIterator struct {
	store      storage.RecordStore
	collection string
	batchSize  int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records per batch; non-positive means DefaultBatchSize
func NewRecordIterator(store storage.RecordStore, collection string, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		store:      store,
		collection: collection,
		batchSize:  batchSize,
	}
}

// ForEach calls fn with consecutive batches of records in id order.
// Iteration stops on the first error from fn or when ctx is done.
// The final batch may be shorter than the batch size.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.Record, 0, it.batchSize)
	err := it.store.ForEachRecord(ctx, it.collection, func(rec *core.Record) error {
		batch = append(batch, rec)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Record, 0, it.batchSize)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Count returns the number of records in the collection.
func (it *RecordIterator) Count(ctx context.Context) (int, error) {
	n := 0
	err := it.store.ForEachRecord(ctx, it.collection, func(*core.Record) error {
		n++
		return nil
	})
	return n, err
}
