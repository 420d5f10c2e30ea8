package domain

import (
	"github.com/allisson/eventbus/internal/errors"
)

// Subscription-specific error definitions.
var (
	// ErrSubscriptionNotFound indicates the subscription does not exist.
	ErrSubscriptionNotFound = errors.Wrap(errors.ErrNotFound, "subscription not found")

	// ErrInvalidSubscription indicates the subscription fields are invalid.
	ErrInvalidSubscription = errors.Wrap(errors.ErrInvalidInput, "invalid subscription")

	// ErrWebhookDelivery indicates every delivery attempt to a webhook failed.
	ErrWebhookDelivery = errors.New("webhook delivery failed")
)
