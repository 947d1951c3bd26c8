package events

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryQueue is an in-process Queue for tests and single-binary deployments.
type MemoryQueue struct {
	pending       chan envelope
	maxDeliveries int
	logger        *slog.Logger

	mu        sync.Mutex
	closed    bool
	redeliver []envelope
	dead      []RecordCreated
	done      chan struct{}
	wake      chan struct{}
}

type envelope struct {
	event   RecordCreated
	attempt int
}

var _ Queue = (*MemoryQueue)(nil)

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithMaxDeliveries overrides DefaultMaxDeliveries.
func WithMaxDeliveries(n int) MemoryOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.maxDeliveries = n
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(q *MemoryQueue) {
		q.logger = logger
	}
}

// NewMemoryQueue creates a queue holding up to capacity published events.
// Publish blocks while the queue is full. Nacked events are held outside
// that bound so redelivery never blocks.
func NewMemoryQueue(capacity int, opts ...MemoryOption) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	q := &MemoryQueue{
		pending:       make(chan envelope, capacity),
		maxDeliveries: DefaultMaxDeliveries,
		logger:        slog.Default(),
		done:          make(chan struct{}),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "memory-queue")
	return q
}

// Publish enqueues event.
func (q *MemoryQueue) Publish(ctx context.Context, event RecordCreated) error {
	return q.enqueue(ctx, envelope{event: event, attempt: 1})
}

func (q *MemoryQueue) enqueue(ctx context.Context, env envelope) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	select {
	case q.pending <- env:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requeue holds env for redelivery without blocking.
func (q *MemoryQueue) requeue(env envelope) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.redeliver = append(q.redeliver, env)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) popRedelivery() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.redeliver) == 0 {
		return envelope{}, false
	}
	env := q.redeliver[0]
	q.redeliver = q.redeliver[1:]
	return env, true
}

// Receive blocks until an event is available. Redeliveries go first.
func (q *MemoryQueue) Receive(ctx context.Context) (Delivery, error) {
	for {
		if env, ok := q.popRedelivery(); ok {
			return &memoryDelivery{queue: q, env: env}, nil
		}
		select {
		case env := <-q.pending:
			return &memoryDelivery{queue: q, env: env}, nil
		case <-q.wake:
		case <-q.done:
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of events waiting for delivery.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.redeliver)
}

// DeadLetters returns the events that exhausted their delivery attempts.
func (q *MemoryQueue) DeadLetters() []RecordCreated {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]RecordCreated, len(q.dead))
	copy(out, q.dead)
	return out
}

// Close stops the queue. Undelivered events are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

type memoryDelivery struct {
	queue   *MemoryQueue
	env     envelope
	mu      sync.Mutex
	settled bool
}

func (d *memoryDelivery) Event() RecordCreated { return d.env.event }

func (d *memoryDelivery) Attempt() int { return d.env.attempt }

func (d *memoryDelivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	return nil
}

func (d *memoryDelivery) Ack(ctx context.Context) error {
	return d.settle()
}

func (d *memoryDelivery) Nack(ctx context.Context) error {
	if err := d.settle(); err != nil {
		return err
	}

	q := d.queue
	if d.env.attempt >= q.maxDeliveries {
		q.mu.Lock()
		q.dead = append(q.dead, d.env.event)
		q.mu.Unlock()
		q.logger.Warn("event dead-lettered", "eventId", d.env.event.EventID, "id", d.env.event.ID, "attempts", d.env.attempt)
		return nil
	}
	return q.requeue(envelope{event: d.env.event, attempt: d.env.attempt + 1})
}
