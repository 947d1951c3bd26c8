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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// Config holds configuration for a reindex run.
type Config struct {
	// Collection is the record store collection to walk.
	Collection string

	// BatchSize is the number of records embedded per call.
	BatchSize int

	// ReportInterval is how often to report progress (number of records).
	ReportInterval int

	// MaxRetries is the maximum number of attempts for embedding and index calls.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// RequireDuration skips records without a duration.
	RequireDuration bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Collection:     "videos",
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Stats summarizes a finished run.
type Stats struct {
	Total   int
	Indexed int
	Skipped int
	Elapsed time.Duration
}

// Reindexer rebuilds index entries for every record of a collection.
type Reindexer struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(store storage.RecordStore, index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, embedder, config.RequireDuration, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(store, config.Collection, config.BatchSize),
	}
}

// Run indexes every record of the configured collection.
// It stops at the first batch that still fails after retries.
func (r *Reindexer) Run(ctx context.Context) (Stats, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in collection %q\n", r.config.Collection)
		return Stats{}, nil
	}

	fmt.Fprintf(r.progress, "Reindexing %d records from %q (batch size: %d)\n",
		total, r.config.Collection, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(batch []*core.Record) error {
		result, err := r.processor.Process(ctx, batch)
		tracker.Add(result)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		return nil
	})

	indexed, skipped := tracker.Totals()
	stats := Stats{Total: total, Indexed: indexed, Skipped: skipped, Elapsed: tracker.Elapsed()}
	if err != nil {
		return stats, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Reindex complete. Indexed %d, skipped %d in %v\n",
		indexed, skipped, stats.Elapsed.Round(time.Millisecond))

	return stats, nil
}
