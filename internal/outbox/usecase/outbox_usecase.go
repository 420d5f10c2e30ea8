package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/database"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// outboxUseCase implements the OutboxUseCase interface.
type outboxUseCase struct {
	txManager   database.TxManager
	outboxRepo  OutboxEventRepository
	resolver    *outboxDomain.TopicResolver
	maxAttempts int
}

// NewOutboxUseCase creates a new OutboxUseCase. maxAttempts is the publish
// attempt ceiling used to identify dead-lettered events.
func NewOutboxUseCase(
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	resolver *outboxDomain.TopicResolver,
	maxAttempts int,
) OutboxUseCase {
	return &outboxUseCase{
		txManager:   txManager,
		outboxRepo:  outboxRepo,
		resolver:    resolver,
		maxAttempts: maxAttempts,
	}
}

// AppendEvent validates input, resolves routing fields and inserts the event.
func (o *outboxUseCase) AppendEvent(
	ctx context.Context,
	input AppendEventInput,
) (*outboxDomain.OutboxEvent, error) {
	eventType := strings.TrimSpace(input.EventType)
	if eventType == "" {
		return nil, outboxDomain.ErrInvalidEventType
	}
	if len(input.EventData) == 0 || !json.Valid(input.EventData) {
		return nil, outboxDomain.ErrInvalidEventPayload
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	occurredAt := input.OccurredAt.UTC()
	if input.OccurredAt.IsZero() {
		occurredAt = now
	}

	event := &outboxDomain.OutboxEvent{
		ID:           id,
		EventType:    eventType,
		EventPayload: string(input.EventData),
		Topic:        o.resolver.Resolve(eventType, input.Topic),
		PartitionKey: outboxDomain.PartitionKeyFor(input.PartitionKey, input.EventData),
		OccurredAt:   occurredAt,
		CreatedAt:    now,
	}
	if correlationID := strings.TrimSpace(input.CorrelationID); correlationID != "" {
		event.CorrelationID = &correlationID
	}

	err = o.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return o.outboxRepo.Create(txCtx, event)
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// Get retrieves an outbox event by ID.
func (o *outboxUseCase) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	return o.outboxRepo.Get(ctx, id)
}

// ListDeadLettered lists unpublished events at the attempt ceiling.
func (o *outboxUseCase) ListDeadLettered(
	ctx context.Context,
	offset, limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	return o.outboxRepo.ListDeadLettered(ctx, o.maxAttempts, offset, limit)
}

// Requeue resets the attempt counter of an unpublished event.
func (o *outboxUseCase) Requeue(ctx context.Context, id uuid.UUID) error {
	return o.txManager.WithTx(ctx, func(txCtx context.Context) error {
		event, err := o.outboxRepo.Get(txCtx, id)
		if err != nil {
			return err
		}
		if event.IsPublished {
			return outboxDomain.ErrOutboxEventAlreadyPublished
		}
		return o.outboxRepo.Requeue(txCtx, id)
	})
}

// PurgePublished deletes published events older than before.
func (o *outboxUseCase) PurgePublished(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	if dryRun {
		return o.outboxRepo.CountPublishedBefore(ctx, before)
	}
	return o.outboxRepo.DeletePublishedBefore(ctx, before)
}
