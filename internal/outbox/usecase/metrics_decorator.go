package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/metrics"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// outboxUseCaseWithMetrics decorates OutboxUseCase with metrics instrumentation.
type outboxUseCaseWithMetrics struct {
	next    OutboxUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxUseCaseWithMetrics wraps an OutboxUseCase with metrics recording.
func NewOutboxUseCaseWithMetrics(useCase OutboxUseCase, m metrics.BusinessMetrics) OutboxUseCase {
	return &outboxUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (o *outboxUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)

	o.metrics.RecordOperation(ctx, metrics.DomainOutbox, operation, status)
	o.metrics.RecordDuration(ctx, metrics.DomainOutbox, operation, time.Since(start), status)
}

// AppendEvent records metrics for event append operations.
func (o *outboxUseCaseWithMetrics) AppendEvent(
	ctx context.Context,
	input AppendEventInput,
) (*outboxDomain.OutboxEvent, error) {
	start := time.Now()
	event, err := o.next.AppendEvent(ctx, input)
	o.observe(ctx, "event_append", start, err)
	return event, err
}

// Get records metrics for event retrieval operations.
func (o *outboxUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	start := time.Now()
	event, err := o.next.Get(ctx, id)
	o.observe(ctx, "event_get", start, err)
	return event, err
}

// ListDeadLettered records metrics for dead-letter listing operations.
func (o *outboxUseCaseWithMetrics) ListDeadLettered(
	ctx context.Context,
	offset, limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	start := time.Now()
	events, err := o.next.ListDeadLettered(ctx, offset, limit)
	o.observe(ctx, "event_list_dead_letter", start, err)
	return events, err
}

// Requeue records metrics for requeue operations.
func (o *outboxUseCaseWithMetrics) Requeue(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := o.next.Requeue(ctx, id)
	o.observe(ctx, "event_requeue", start, err)
	return err
}

// PurgePublished records metrics for retention purge operations.
func (o *outboxUseCaseWithMetrics) PurgePublished(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := o.next.PurgePublished(ctx, before, dryRun)
	o.observe(ctx, "event_purge", start, err)
	return count, err
}
