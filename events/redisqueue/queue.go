// Package redisqueue implements events.Queue on Redis lists.
//
// Events wait in a pending list. Receive moves one atomically into a
// processing list with BLMOVE, so a crashed worker leaves it there instead
// of losing it; Recover puts such stranded events back. Ack removes the
// event from the processing list. Nack requeues it with a bumped attempt
// counter, or moves it to a dead-letter list once MaxDeliveries is reached.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/mediasearch/events"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces the queue's lists.
	DefaultKeyPrefix = "mediasearch:record_created"

	// DefaultPollTimeout bounds each BLMOVE so Receive notices cancellation.
	DefaultPollTimeout = 5 * time.Second
)

// Queue is a Redis-backed events.Queue.
type Queue struct {
	client        redis.UniversalClient
	keys          keys
	maxDeliveries int
	pollTimeout   time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ events.Queue = (*Queue)(nil)

type keys struct {
	pending    string
	processing string
	dead       string
}

func newKeys(prefix string) keys {
	return keys{
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		dead:       prefix + ":dead",
	}
}

// Option configures a Queue.
type Option func(*Queue) error

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) error {
		if prefix == "" {
			return errors.New("key prefix must not be empty")
		}
		q.keys = newKeys(prefix)
		return nil
	}
}

// WithMaxDeliveries overrides events.DefaultMaxDeliveries.
func WithMaxDeliveries(n int) Option {
	return func(q *Queue) error {
		if n <= 0 {
			return errors.New("max deliveries must be positive")
		}
		q.maxDeliveries = n
		return nil
	}
}

// WithPollTimeout overrides DefaultPollTimeout.
func WithPollTimeout(d time.Duration) Option {
	return func(q *Queue) error {
		if d <= 0 {
			return errors.New("poll timeout must be positive")
		}
		q.pollTimeout = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		q.logger = logger
		return nil
	}
}

// New wraps an existing client. The queue does not own the client unless
// it was created by Dial.
func New(client redis.UniversalClient, opts ...Option) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	q := &Queue{
		client:        client,
		keys:          newKeys(DefaultKeyPrefix),
		maxDeliveries: events.DefaultMaxDeliveries,
		pollTimeout:   DefaultPollTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "redis-queue")
	return q, nil
}

// Dial connects to Redis at addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, opts...)
}

// message is the wire form of a queued event.
type message struct {
	Event   events.RecordCreated `json:"event"`
	Attempt int                  `json:"attempt"`
}

func encode(msg message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(raw string) (message, error) {
	var msg message
	err := json.Unmarshal([]byte(raw), &msg)
	return msg, err
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Publish pushes event onto the pending list.
func (q *Queue) Publish(ctx context.Context, event events.RecordCreated) error {
	if q.isClosed() {
		return events.ErrQueueClosed
	}
	raw, err := encode(message{Event: event, Attempt: 1})
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.keys.pending, raw).Err()
}

// Receive blocks until an event moves into the processing list.
func (q *Queue) Receive(ctx context.Context) (events.Delivery, error) {
	for {
		if q.isClosed() {
			return nil, events.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := q.client.BLMove(ctx, q.keys.pending, q.keys.processing, "RIGHT", "LEFT", q.pollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}

		msg, err := decode(raw)
		if err != nil {
			// Unreadable payloads can never succeed; park them.
			q.logger.Error("dropping undecodable event", "err", err)
			if dlErr := q.deadLetter(ctx, raw); dlErr != nil {
				return nil, dlErr
			}
			continue
		}
		return &delivery{queue: q, raw: raw, msg: msg}, nil
	}
}

// Recover moves every event stranded in the processing list back onto the
// pending list and reports how many were moved. Call it once at startup,
// before any worker receives.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.keys.processing, q.keys.pending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		q.logger.Info("recovered in-flight events", "count", moved)
	}
	return moved, nil
}

// DeadLetterCount returns the length of the dead-letter list.
func (q *Queue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.keys.dead).Result()
}

// Close marks the queue closed and closes the client.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.client.Close()
}

func (q *Queue) deadLetter(ctx context.Context, raw string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.processing, 1, raw)
		pipe.LPush(ctx, q.keys.dead, raw)
		return nil
	})
	return err
}

type delivery struct {
	queue *Queue
	raw   string
	msg   message

	mu      sync.Mutex
	settled bool
}

func (d *delivery) Event() events.RecordCreated { return d.msg.Event }

func (d *delivery) Attempt() int { return d.msg.Attempt }

func (d *delivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return events.ErrAlreadySettled
	}
	d.settled = true
	return nil
}

func (d *delivery) Ack(ctx context.Context) error {
	if err := d.settle(); err != nil {
		return err
	}
	return d.queue.client.LRem(ctx, d.queue.keys.processing, 1, d.raw).Err()
}

func (d *delivery) Nack(ctx context.Context) error {
	if err := d.settle(); err != nil {
		return err
	}

	q := d.queue
	if d.msg.Attempt >= q.maxDeliveries {
		q.logger.Warn("event dead-lettered", "eventId", d.msg.Event.EventID, "id", d.msg.Event.ID, "attempts", d.msg.Attempt)
		return q.deadLetter(ctx, d.raw)
	}

	next, err := encode(message{Event: d.msg.Event, Attempt: d.msg.Attempt + 1})
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.processing, 1, d.raw)
		pipe.LPush(ctx, q.keys.pending, next)
		return nil
	})
	return err
}
