// Package events carries record-created notifications from whatever writes
// records to the ingestion worker.
//
// Delivery is at-least-once: a consumer acknowledges an event once it has
// been handled and negatively acknowledges it when redelivery could help.
// Queues give up after MaxDeliveries attempts and dead-letter the event.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/mediasearch/core"
)

// DefaultMaxDeliveries bounds how often a nacked event is redelivered.
const DefaultMaxDeliveries = 5

var (
	// ErrQueueClosed is returned by operations on a closed queue.
	ErrQueueClosed = errors.New("queue closed")

	// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
	ErrAlreadySettled = errors.New("delivery already settled")
)

// RecordCreated announces a newly written record.
type RecordCreated struct {
	EventID    string       `json:"eventId"`
	ID         string       `json:"id"`
	Collection string       `json:"collection"`
	Record     *core.Record `json:"record"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NewRecordCreated builds an event for record with a fresh event id.
func NewRecordCreated(collection string, record *core.Record) RecordCreated {
	return RecordCreated{
		EventID:    uuid.NewString(),
		ID:         record.ID,
		Collection: collection,
		Record:     record,
		OccurredAt: time.Now().UTC(),
	}
}

// Delivery is one received event awaiting settlement.
type Delivery interface {
	// Event returns the delivered event.
	Event() RecordCreated

	// Attempt is 1 for the first delivery and grows with each redelivery.
	Attempt() int

	// Ack marks the event handled; it will not be delivered again.
	Ack(ctx context.Context) error

	// Nack hands the event back for redelivery, or dead-letters it once
	// the attempt budget is spent.
	Nack(ctx context.Context) error
}

// Queue transports RecordCreated events.
type Queue interface {
	// Publish enqueues an event.
	Publish(ctx context.Context, event RecordCreated) error

	// Receive blocks until an event is available or ctx is done.
	Receive(ctx context.Context) (Delivery, error)

	// Close releases the queue. Blocked receivers return ErrQueueClosed.
	Close() error
}
