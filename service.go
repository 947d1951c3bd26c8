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


package mediasearch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/ai/goopenai"
	"github.com/poiesic/mediasearch/ai/openai"
	"github.com/poiesic/mediasearch/config"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/events"
	"github.com/poiesic/mediasearch/events/redisqueue"
	"github.com/poiesic/mediasearch/ingestion"
	"github.com/poiesic/mediasearch/search"
	"github.com/poiesic/mediasearch/storage"
	"github.com/poiesic/mediasearch/storage/badger"
	"github.com/poiesic/mediasearch/storage/postgres"
)

// Service wires the configured stores, embedder and event queue together.
// Build orchestrators from it with NewIngester, NewConsumer and NewSearcher.
type Service struct {
	cfg      *config.Config
	index    storage.VectorIndex
	records  storage.RecordStore
	embedder ai.Embedder
	queue    events.Queue
	closers  []func() error
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	embedder ai.Embedder
	queue    events.Queue
	inMemory bool
	logger   *slog.Logger
}

// WithEmbedder uses embedder instead of building one from the AI config.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithQueue uses queue instead of building one from the queue config.
// The service does not close a queue it did not create.
func WithQueue(queue events.Queue) Option {
	return func(o *serviceOptions) {
		o.queue = queue
	}
}

// WithInMemoryStorage keeps the badger backend in memory, ignoring BadgerPath.
func WithInMemoryStorage() Option {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// Open builds a Service from cfg. Every resource opened before a failure is
// released again.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	s := &Service{
		cfg:    cfg,
		logger: options.logger.With("component", "service"),
	}
	if err := s.openStorage(ctx, options.inMemory); err != nil {
		s.Close()
		return nil, err
	}

	s.embedder = options.embedder
	if s.embedder == nil {
		embedder, err := NewEmbedder(cfg.AI)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.embedder = embedder
	}

	s.queue = options.queue
	if s.queue == nil {
		if err := s.openQueue(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.logger.Info("service ready",
		"storage", cfg.Storage.Backend,
		"queue", cfg.Queue.Backend,
		"provider", cfg.AI.Provider,
		"model", cfg.AI.EmbeddingModel)
	return s, nil
}

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return goopenai.NewEmbedder(cfg)
	case ai.ProviderOpenAICompatible:
		return openai.NewEmbedder(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, cfg.Provider)
	}
}

func (s *Service) openStorage(ctx context.Context, inMemory bool) error {
	switch s.cfg.Storage.Backend {
	case config.BackendBadger:
		backend, err := badger.OpenBackend(s.cfg.Storage.BadgerPath, inMemory)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, backend.Close)
		s.index = badger.NewVectorIndex(backend)
		s.records = badger.NewRecordStore(backend)
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, s.cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)
		if err := postgres.EnsureSchema(ctx, db, s.cfg.AI.Dimensions); err != nil {
			return err
		}
		s.usePostgres(db)
	default:
		return fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, s.cfg.Storage.Backend)
	}
	return nil
}

func (s *Service) usePostgres(db *sql.DB) {
	s.index = postgres.NewVectorIndex(db)
	s.records = postgres.NewRecordStore(db)
}

func (s *Service) openQueue(ctx context.Context) error {
	qc := s.cfg.Queue
	switch qc.Backend {
	case config.QueueMemory:
		q := events.NewMemoryQueue(0,
			events.WithMaxDeliveries(qc.MaxDeliveries),
			events.WithMemoryLogger(s.logger))
		s.queue = q
		s.closers = append(s.closers, q.Close)
	case config.QueueRedis:
		q, err := redisqueue.Dial(ctx, qc.RedisAddr, qc.RedisPassword, qc.RedisDB,
			redisqueue.WithKeyPrefix(qc.KeyPrefix),
			redisqueue.WithMaxDeliveries(qc.MaxDeliveries),
			redisqueue.WithLogger(s.logger))
		if err != nil {
			return err
		}
		s.queue = q
		s.closers = append(s.closers, q.Close)
		recovered, err := q.Recover(ctx)
		if err != nil {
			return err
		}
		if recovered > 0 {
			s.logger.Info("requeued in-flight events", "count", recovered)
		}
	default:
		return fmt.Errorf("%w: unknown queue backend %q", config.ErrInvalidConfig, qc.Backend)
	}
	return nil
}

// Close releases everything Open created, most recent first.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) Index() storage.VectorIndex { return s.index }

func (s *Service) Records() storage.RecordStore { return s.records }

func (s *Service) Embedder() ai.Embedder { return s.embedder }

func (s *Service) Queue() events.Queue { return s.queue }

// NewIngester creates an ingester honoring the configured duration policy.
// Options are applied after the configured ones.
func (s *Service) NewIngester(opts ...ingestion.Option) (*ingestion.Ingester, error) {
	base := []ingestion.Option{
		ingestion.WithDurationRequired(s.cfg.Ingest.RequireDuration),
		ingestion.WithLogger(s.logger),
	}
	return ingestion.NewIngester(s.embedder, s.index, append(base, opts...)...)
}

// NewConsumer creates a queue consumer feeding a new ingester.
// Call Release on the result when done.
func (s *Service) NewConsumer(opts ...ingestion.ConsumerOption) (*ingestion.Consumer, error) {
	ingester, err := s.NewIngester()
	if err != nil {
		return nil, err
	}
	base := []ingestion.ConsumerOption{
		ingestion.WithCollection(s.cfg.Search.Collection),
		ingestion.WithConsumerLogger(s.logger),
	}
	if s.cfg.Ingest.Workers > 0 {
		base = append(base, ingestion.WithPoolSize(s.cfg.Ingest.Workers))
	}
	return ingestion.NewConsumer(s.queue, ingester, append(base, opts...)...)
}

// NewSearcher creates a searcher using the configured collection and limits.
func (s *Service) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithCollection(s.cfg.Search.Collection),
		search.WithMaxLimit(s.cfg.Search.MaxLimit),
		search.WithLookupBatchSize(s.cfg.Search.LookupBatchSize),
		search.WithLogger(s.logger),
	}
	return search.NewSearcher(s.embedder, s.index, s.records, append(base, opts...)...)
}

// Seed writes records to the configured collection and announces each one
// on the queue, standing in for the external writer.
func (s *Service) Seed(ctx context.Context, records ...*core.Record) ([]*core.Record, error) {
	stored, err := s.records.PutRecords(ctx, s.cfg.Search.Collection, records...)
	if err != nil {
		return nil, err
	}
	for _, rec := range stored {
		if err := s.queue.Publish(ctx, events.NewRecordCreated(s.cfg.Search.Collection, rec)); err != nil {
			return nil, fmt.Errorf("publishing %s: %w", rec.ID, err)
		}
	}
	s.logger.Info("seeded records", "count", len(stored), "collection", s.cfg.Search.Collection)
	return stored, nil
}
