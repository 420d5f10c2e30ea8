// Package usecase implements the subscription registry and webhook delivery.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/broker"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

// SubscriptionRepository defines the interface for EventSubscription persistence operations.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *subscriptionDomain.EventSubscription) error
	Get(ctx context.Context, id uuid.UUID) (*subscriptionDomain.EventSubscription, error)
	GetByEventType(ctx context.Context, eventType string) ([]*subscriptionDomain.EventSubscription, error)
	List(ctx context.Context, offset, limit int) ([]*subscriptionDomain.EventSubscription, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordDeliverySuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordDeliveryFailure(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
}

// SubscribeInput describes a webhook subscription request.
type SubscribeInput struct {
	ServiceName string
	EventType   string
	WebhookURL  string
	// RetryCount defaults to domain.DefaultRetryCount when nil.
	RetryCount *int
	// TimeoutSeconds defaults to domain.DefaultTimeoutSeconds when nil.
	TimeoutSeconds *int
}

// SubscriptionUseCase defines the interface for the subscription registry.
type SubscriptionUseCase interface {
	// Subscribe registers a webhook. Subscribing again with the same service
	// name and event type updates and reactivates the existing subscription.
	Subscribe(ctx context.Context, input SubscribeInput) (*subscriptionDomain.EventSubscription, error)
	Get(ctx context.Context, id uuid.UUID) (*subscriptionDomain.EventSubscription, error)
	List(ctx context.Context, offset, limit int) ([]*subscriptionDomain.EventSubscription, error)
	// GetByEventType returns only active subscriptions.
	GetByEventType(ctx context.Context, eventType string) ([]*subscriptionDomain.EventSubscription, error)
	Unsubscribe(ctx context.Context, id uuid.UUID) error
	// UpdateDeliveryStatus records a delivery outcome. On success the failure
	// reason is cleared; on failure last_delivered_at is left unchanged.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, success bool, failureReason string) error
}

// DeliveryUseCase delivers envelopes to subscription webhooks.
type DeliveryUseCase interface {
	// Deliver posts env to the subscription webhook, retrying up to the
	// subscription's retry count, and records the outcome. The returned error
	// wraps domain.ErrWebhookDelivery when every attempt failed.
	Deliver(ctx context.Context, sub *subscriptionDomain.EventSubscription, env broker.Envelope) error
}
