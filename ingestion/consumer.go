package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/events"
)

const receiveBackoff = time.Second

// Consumer feeds queued record-created events to an Ingester.
type Consumer struct {
	queue      events.Queue
	ingester   *Ingester
	pool       *ants.Pool
	collection string
	logger     *slog.Logger
	inflight   sync.WaitGroup
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig) error

type consumerConfig struct {
	poolSize   int
	collection string
	logger     *slog.Logger
}

// WithPoolSize sets how many events are processed concurrently.
// Default is runtime.NumCPU() / 2, at least 1.
func WithPoolSize(size int) ConsumerOption {
	return func(c *consumerConfig) error {
		if size < 1 {
			return fmt.Errorf("pool size must be at least 1, got %d", size)
		}
		c.poolSize = size
		return nil
	}
}

// WithCollection restricts the consumer to events for one collection.
// Events for other collections are acknowledged and skipped.
func WithCollection(collection string) ConsumerOption {
	return func(c *consumerConfig) error {
		c.collection = collection
		return nil
	}
}

// WithConsumerLogger sets a custom logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *consumerConfig) error {
		c.logger = logger
		return nil
	}
}

// NewConsumer creates a consumer. Call Release when done.
func NewConsumer(queue events.Queue, ingester *Ingester, opts ...ConsumerOption) (*Consumer, error) {
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	cfg := &consumerConfig{
		poolSize: max(runtime.NumCPU()/2, 1),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Consumer{
		queue:      queue,
		ingester:   ingester,
		pool:       pool,
		collection: cfg.collection,
		logger:     cfg.logger.With("component", "ingest-consumer"),
	}, nil
}

// Run receives events until ctx is done or the queue closes, then waits for
// in-flight events to settle. It returns nil on either kind of shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", "workers", c.pool.Cap(), "collection", c.collection)
	defer c.inflight.Wait()

	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		delivery, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, events.ErrQueueClosed) {
				c.logger.Info("consumer stopping", "reason", err)
				return nil
			}
			c.logger.Error("failed to receive event", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(receiveBackoff):
			}
			continue
		}

		c.inflight.Add(1)
		if err := c.pool.Submit(func() {
			defer c.inflight.Done()
			c.handle(ctx, delivery)
		}); err != nil {
			c.inflight.Done()
			c.logger.Error("failed to submit event", "eventId", delivery.Event().EventID, "err", err)
			c.settle(ctx, delivery, false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery events.Delivery) {
	event := delivery.Event()
	if c.collection != "" && event.Collection != c.collection {
		c.logger.Debug("skipping event for other collection", "collection", event.Collection, "id", event.ID)
		c.settle(ctx, delivery, true)
		return
	}

	err := c.ingester.Process(ctx, event.ID, event.Record)
	switch {
	case err == nil:
		c.settle(ctx, delivery, true)
	case errors.Is(err, core.ErrInvalidRecord):
		// redelivery cannot fix a bad record
		c.settle(ctx, delivery, true)
	default:
		c.logger.Warn("ingestion failed, requesting redelivery",
			"id", event.ID, "attempt", delivery.Attempt(), "err", err)
		c.settle(ctx, delivery, false)
	}
}

func (c *Consumer) settle(ctx context.Context, delivery events.Delivery, ok bool) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if ok {
		err = delivery.Ack(ctx)
	} else {
		err = delivery.Nack(ctx)
	}
	if err != nil {
		c.logger.Error("failed to settle event", "eventId", delivery.Event().EventID, "ack", ok, "err", err)
	}
}

// Release frees the worker pool. It must not be called while Run is active.
func (c *Consumer) Release() {
	c.pool.Release()
}
