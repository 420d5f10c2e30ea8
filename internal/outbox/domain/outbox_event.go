// Package domain defines the outbox event entity and the rules that derive its
// routing fields (topic and partition key) from an incoming event.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a row of the transactional outbox. It is written by the
// business collaborator in the same transaction as its state change and is
// only mutated afterwards by the outbox publisher.
type OutboxEvent struct {
	// ID is the event identifier; consumers deduplicate on it.
	ID uuid.UUID
	// EventType names the event (e.g., "UserRegistered").
	EventType string
	// EventPayload is the serialized JSON payload.
	EventPayload string
	// Topic is the broker topic the event is published to.
	Topic string
	// PartitionKey routes related events to the same ordered partition.
	PartitionKey *string
	// CorrelationID links the event to the request that produced it.
	CorrelationID *string
	// OccurredAt is when the business fact happened.
	OccurredAt time.Time
	// CreatedAt is when the row was appended.
	CreatedAt time.Time
	// IsPublished transitions from false to true exactly once.
	IsPublished bool
	// PublishedAt is set if and only if IsPublished is true.
	PublishedAt *time.Time
	// PublishAttempts counts failed publish attempts.
	PublishAttempts int
	// LastErrorMessage holds the most recent publish failure.
	LastErrorMessage *string
}

// IsDeadLettered reports whether the event reached the attempt ceiling
// without being published. Such rows are skipped by the publisher until requeued.
func (e *OutboxEvent) IsDeadLettered(maxAttempts int) bool {
	return !e.IsPublished && e.PublishAttempts >= maxAttempts
}
