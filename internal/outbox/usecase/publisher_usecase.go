package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/allisson/eventbus/internal/broker"
	"github.com/allisson/eventbus/internal/database"
	"github.com/allisson/eventbus/internal/metrics"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// maxErrorMessageLength bounds the error text stored on an outbox row.
const maxErrorMessageLength = 1024

// PublisherConfig holds outbox publisher configuration.
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// publisherUseCase implements PublisherUseCase.
type publisherUseCase struct {
	config     PublisherConfig
	txManager  database.TxManager
	outboxRepo OutboxEventRepository
	producer   broker.Producer
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublisherUseCase creates a new PublisherUseCase.
func NewPublisherUseCase(
	config PublisherConfig,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	producer broker.Producer,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) PublisherUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &publisherUseCase{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		producer:   producer,
		metrics:    businessMetrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a publish cycle on every tick until ctx is canceled. A cycle in
// progress when ctx is canceled runs to completion. A persistence error aborts
// the cycle and is returned so the supervisor restarts the loop with backoff.
func (p *publisherUseCase) Start(ctx context.Context) error {
	p.logger.Info("starting outbox publisher",
		slog.Duration("interval", p.config.PollInterval),
		slog.Int("batch_size", p.config.BatchSize),
		slog.Int("max_attempts", p.config.MaxAttempts),
	)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping outbox publisher")
			return nil
		case <-ticker.C:
			result, err := p.PublishBatch(context.WithoutCancel(ctx))
			if err != nil {
				return fmt.Errorf("failed to publish outbox batch: %w", err)
			}
			if result.Claimed > 0 {
				p.logger.Info("published outbox batch",
					slog.Int("claimed", result.Claimed),
					slog.Int("published", result.Published),
					slog.Int("failed", result.Failed),
					slog.Int("deferred", result.Deferred),
					slog.Int("dead_lettered", result.DeadLettered),
				)
			}
		}
	}
}

// PublishBatch claims a batch of pending events inside one transaction and
// publishes them one by one. A failed publish is recorded on its own row and
// never aborts the rest of the batch, but later rows sharing its partition key
// are deferred to the next cycle without counting an attempt. While the broker
// circuit is open every remaining row is deferred. A persistence error aborts
// the cycle and rolls back every status update in it; events already sent are
// published again on a later cycle.
func (p *publisherUseCase) PublishBatch(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	err := p.txManager.WithTx(ctx, func(txCtx context.Context) error {
		result = BatchResult{}

		events, err := p.outboxRepo.GetUnpublished(txCtx, p.config.BatchSize, p.config.MaxAttempts)
		if err != nil {
			return err
		}
		result.Claimed = len(events)

		blocked := make(map[string]struct{})
		circuitOpen := false
		for _, event := range events {
			key := deref(event.PartitionKey)
			if circuitOpen || isBlocked(blocked, key) {
				result.Deferred++
				continue
			}

			outcome, err := p.publishEvent(txCtx, event, &result)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeCircuitOpen:
				circuitOpen = true
			case outcomeFailed:
				blocked[key] = struct{}{}
			}
		}
		return nil
	})

	return result, err
}

func isBlocked(blocked map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	_, ok := blocked[key]
	return ok
}

type publishOutcome int

const (
	outcomePublished publishOutcome = iota
	outcomeFailed
	outcomeCircuitOpen
)

func (p *publisherUseCase) publishEvent(
	ctx context.Context,
	event *outboxDomain.OutboxEvent,
	result *BatchResult,
) (publishOutcome, error) {
	start := time.Now()
	publishErr := p.producer.Publish(ctx, event.Topic, deref(event.PartitionKey), envelopeFor(event))

	if publishErr == nil {
		if err := p.outboxRepo.MarkAsPublished(ctx, event.ID, p.now()); err != nil {
			return outcomePublished, err
		}
		result.Published++
		p.record(ctx, metrics.StatusSuccess, start)
		return outcomePublished, nil
	}

	// The message never left the process; the row keeps its attempt budget.
	if errors.Is(publishErr, broker.ErrCircuitOpen) {
		result.Deferred++
		p.logger.Warn("broker circuit open, deferring outbox batch",
			slog.String("event_id", event.ID.String()),
			slog.String("topic", event.Topic),
		)
		return outcomeCircuitOpen, nil
	}

	logAttrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("topic", event.Topic),
		slog.Int("attempt", event.PublishAttempts+1),
		slog.Any("error", publishErr),
	}
	message := truncate(publishErr.Error(), maxErrorMessageLength)

	if !broker.IsRetryable(publishErr) {
		if err := p.outboxRepo.ExhaustPublishAttempts(ctx, event.ID, p.config.MaxAttempts, message); err != nil {
			return outcomeFailed, err
		}
		result.DeadLettered++
		p.record(ctx, metrics.StatusDeadLetter, start)
		p.logger.Error("outbox event cannot be published, dead-lettered", logAttrs...)
		return outcomeFailed, nil
	}

	if err := p.outboxRepo.UpdatePublishAttempt(ctx, event.ID, message); err != nil {
		return outcomeFailed, err
	}

	if event.PublishAttempts+1 >= p.config.MaxAttempts {
		result.DeadLettered++
		p.record(ctx, metrics.StatusDeadLetter, start)
		p.logger.Error("outbox event reached max publish attempts, dead-lettered", logAttrs...)
		return outcomeFailed, nil
	}

	result.Failed++
	p.record(ctx, metrics.StatusRetry, start)
	p.logger.Warn("failed to publish outbox event, will retry", logAttrs...)
	return outcomeFailed, nil
}

func (p *publisherUseCase) record(ctx context.Context, status string, start time.Time) {
	p.metrics.RecordOperation(ctx, metrics.DomainOutbox, "event_publish", status)
	p.metrics.RecordDuration(ctx, metrics.DomainOutbox, "event_publish", time.Since(start), status)
}

// envelopeFor builds the wire envelope of an outbox row.
func envelopeFor(event *outboxDomain.OutboxEvent) broker.Envelope {
	return broker.Envelope{
		EventID:       event.ID.String(),
		EventType:     event.EventType,
		OccurredAt:    event.OccurredAt,
		CorrelationID: deref(event.CorrelationID),
		Pattern:       patternOf(event.EventPayload),
		Payload:       json.RawMessage(event.EventPayload),
	}
}

// cacheInvalidation is the payload shape of events carrying a cache key pattern.
type cacheInvalidation struct {
	Pattern string `json:"pattern"`
}

func patternOf(payload string) string {
	var hint cacheInvalidation
	if err := json.Unmarshal([]byte(payload), &hint); err != nil {
		return ""
	}
	return hint.Pattern
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
