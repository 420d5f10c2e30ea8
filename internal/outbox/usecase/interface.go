// Package usecase implements the outbox business logic: appending events in
// the caller's transaction, publishing pending events to the broker, and the
// operator actions on dead-lettered and old published events.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// OutboxEventRepository defines the interface for OutboxEvent persistence operations.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
	Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error)
	GetUnpublished(ctx context.Context, batchSize int, maxAttempts int) ([]*outboxDomain.OutboxEvent, error)
	MarkAsPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	UpdatePublishAttempt(ctx context.Context, id uuid.UUID, errorMessage string) error
	ExhaustPublishAttempts(ctx context.Context, id uuid.UUID, maxAttempts int, errorMessage string) error
	ListDeadLettered(ctx context.Context, maxAttempts int, offset int, limit int) ([]*outboxDomain.OutboxEvent, error)
	Requeue(ctx context.Context, id uuid.UUID) error
	CountPublishedBefore(ctx context.Context, before time.Time) (int64, error)
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AppendEventInput describes an event to append to the outbox.
type AppendEventInput struct {
	EventType string
	EventData json.RawMessage
	// Topic overrides topic resolution when set.
	Topic string
	// PartitionKey overrides the key derived from the payload "id" field when set.
	PartitionKey  string
	CorrelationID string
	// OccurredAt defaults to the append time.
	OccurredAt time.Time
}

// OutboxUseCase defines the interface for outbox event management.
type OutboxUseCase interface {
	// AppendEvent inserts an event into the outbox. When ctx carries a
	// transaction the insert joins it, so it commits or rolls back together
	// with the caller's business write.
	AppendEvent(ctx context.Context, input AppendEventInput) (*outboxDomain.OutboxEvent, error)
	Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error)
	ListDeadLettered(ctx context.Context, offset, limit int) ([]*outboxDomain.OutboxEvent, error)
	// Requeue resets the attempts of an unpublished event so the publisher picks it up again.
	Requeue(ctx context.Context, id uuid.UUID) error
	// PurgePublished deletes published events older than the given time and
	// returns how many rows were (or, with dryRun, would be) deleted.
	PurgePublished(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// BatchResult summarizes one publisher cycle.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	Deferred     int
	DeadLettered int
}

// PublisherUseCase relays outbox events to the broker.
type PublisherUseCase interface {
	// Start runs publish cycles every poll interval until ctx is canceled.
	Start(ctx context.Context) error
	// PublishBatch runs a single publish cycle.
	PublishBatch(ctx context.Context) (BatchResult, error)
}
