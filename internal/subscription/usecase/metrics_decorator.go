package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/metrics"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

// subscriptionUseCaseWithMetrics decorates SubscriptionUseCase with metrics instrumentation.
type subscriptionUseCaseWithMetrics struct {
	next    SubscriptionUseCase
	metrics metrics.BusinessMetrics
}

// NewSubscriptionUseCaseWithMetrics wraps a SubscriptionUseCase with metrics recording.
func NewSubscriptionUseCaseWithMetrics(useCase SubscriptionUseCase, m metrics.BusinessMetrics) SubscriptionUseCase {
	return &subscriptionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *subscriptionUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)

	s.metrics.RecordOperation(ctx, metrics.DomainSubscription, operation, status)
	s.metrics.RecordDuration(ctx, metrics.DomainSubscription, operation, time.Since(start), status)
}

// Subscribe records metrics for subscribe operations.
func (s *subscriptionUseCaseWithMetrics) Subscribe(
	ctx context.Context,
	input SubscribeInput,
) (*subscriptionDomain.EventSubscription, error) {
	start := time.Now()
	sub, err := s.next.Subscribe(ctx, input)
	s.observe(ctx, "subscription_subscribe", start, err)
	return sub, err
}

// Get records metrics for subscription retrieval operations.
func (s *subscriptionUseCaseWithMetrics) Get(
	ctx context.Context,
	id uuid.UUID,
) (*subscriptionDomain.EventSubscription, error) {
	start := time.Now()
	sub, err := s.next.Get(ctx, id)
	s.observe(ctx, "subscription_get", start, err)
	return sub, err
}

// List records metrics for subscription list operations.
func (s *subscriptionUseCaseWithMetrics) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	start := time.Now()
	subs, err := s.next.List(ctx, offset, limit)
	s.observe(ctx, "subscription_list", start, err)
	return subs, err
}

// GetByEventType is on the routing hot path and is not instrumented.
func (s *subscriptionUseCaseWithMetrics) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	return s.next.GetByEventType(ctx, eventType)
}

// Unsubscribe records metrics for unsubscribe operations.
func (s *subscriptionUseCaseWithMetrics) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.next.Unsubscribe(ctx, id)
	s.observe(ctx, "subscription_unsubscribe", start, err)
	return err
}

// UpdateDeliveryStatus records metrics for delivery status updates.
func (s *subscriptionUseCaseWithMetrics) UpdateDeliveryStatus(
	ctx context.Context,
	id uuid.UUID,
	success bool,
	failureReason string,
) error {
	start := time.Now()
	err := s.next.UpdateDeliveryStatus(ctx, id, success, failureReason)
	s.observe(ctx, "subscription_delivery_status", start, err)
	return err
}
