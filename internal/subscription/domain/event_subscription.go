// Package domain defines webhook subscriptions to event types and their
// delivery bookkeeping.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRetryCount is the total number of delivery attempts when none is given.
	DefaultRetryCount = 3
	// DefaultTimeoutSeconds is the per-attempt webhook timeout when none is given.
	DefaultTimeoutSeconds = 30
)

// EventSubscription registers a service webhook for one event type.
// At most one subscription exists per (ServiceName, EventType).
type EventSubscription struct {
	ID          uuid.UUID
	ServiceName string
	EventType   string
	WebhookURL  string
	IsActive    bool
	// RetryCount is the total number of delivery attempts per event.
	RetryCount int
	// TimeoutSeconds bounds each delivery attempt.
	TimeoutSeconds  int
	LastDeliveredAt *time.Time
	LastFailedAt    *time.Time
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Timeout returns the per-attempt timeout.
func (s *EventSubscription) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Attempts returns the total number of delivery attempts, at least one.
func (s *EventSubscription) Attempts() int {
	if s.RetryCount < 1 {
		return 1
	}
	return s.RetryCount
}
