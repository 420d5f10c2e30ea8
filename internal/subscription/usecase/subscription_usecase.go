package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/database"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

// subscriptionUseCase implements the SubscriptionUseCase interface.
type subscriptionUseCase struct {
	txManager database.TxManager
	subRepo   SubscriptionRepository
	now       func() time.Time
}

// NewSubscriptionUseCase creates a new SubscriptionUseCase.
func NewSubscriptionUseCase(txManager database.TxManager, subRepo SubscriptionRepository) SubscriptionUseCase {
	return &subscriptionUseCase{
		txManager: txManager,
		subRepo:   subRepo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe validates input, applies defaults and upserts the subscription.
func (s *subscriptionUseCase) Subscribe(
	ctx context.Context,
	input SubscribeInput,
) (*subscriptionDomain.EventSubscription, error) {
	retryCount := subscriptionDomain.DefaultRetryCount
	if input.RetryCount != nil {
		retryCount = *input.RetryCount
	}
	timeoutSeconds := subscriptionDomain.DefaultTimeoutSeconds
	if input.TimeoutSeconds != nil {
		timeoutSeconds = *input.TimeoutSeconds
	}

	serviceName := strings.TrimSpace(input.ServiceName)
	eventType := strings.TrimSpace(input.EventType)
	if serviceName == "" || eventType == "" || retryCount < 1 || timeoutSeconds < 1 {
		return nil, subscriptionDomain.ErrInvalidSubscription
	}
	if u, err := url.Parse(input.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") ||
		u.Host == "" {
		return nil, subscriptionDomain.ErrInvalidSubscription
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &subscriptionDomain.EventSubscription{
		ID:             id,
		ServiceName:    serviceName,
		EventType:      eventType,
		WebhookURL:     input.WebhookURL,
		IsActive:       true,
		RetryCount:     retryCount,
		TimeoutSeconds: timeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.subRepo.Upsert(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Get retrieves a subscription by ID.
func (s *subscriptionUseCase) Get(ctx context.Context, id uuid.UUID) (*subscriptionDomain.EventSubscription, error) {
	return s.subRepo.Get(ctx, id)
}

// List returns a page of subscriptions.
func (s *subscriptionUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	return s.subRepo.List(ctx, offset, limit)
}

// GetByEventType returns the active subscriptions for eventType.
func (s *subscriptionUseCase) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	return s.subRepo.GetByEventType(ctx, eventType)
}

// Unsubscribe deactivates a subscription. The row is kept.
func (s *subscriptionUseCase) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	return s.subRepo.Deactivate(ctx, id, s.now())
}

// UpdateDeliveryStatus records a delivery outcome.
func (s *subscriptionUseCase) UpdateDeliveryStatus(
	ctx context.Context,
	id uuid.UUID,
	success bool,
	failureReason string,
) error {
	if success {
		return s.subRepo.RecordDeliverySuccess(ctx, id, s.now())
	}
	return s.subRepo.RecordDeliveryFailure(ctx, id, s.now(), failureReason)
}
