package dto

import (
	"time"

	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

// SubscriptionResponse represents a subscription and its delivery status in API responses.
type SubscriptionResponse struct {
	SubscriptionID  string     `json:"subscriptionId"`
	ServiceName     string     `json:"serviceName"`
	EventType       string     `json:"eventType"`
	WebhookURL      string     `json:"webhookUrl"`
	RetryCount      int        `json:"retryCount"`
	TimeoutSeconds  int        `json:"timeoutSeconds"`
	IsActive        bool       `json:"isActive"`
	LastDeliveredAt *time.Time `json:"lastDeliveredAt,omitempty"`
	LastFailedAt    *time.Time `json:"lastFailedAt,omitempty"`
	FailureReason   *string    `json:"failureReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ListSubscriptionsResponse represents a paginated list of subscriptions.
type ListSubscriptionsResponse struct {
	Data []SubscriptionResponse `json:"data"`
}

// MapSubscriptionToResponse converts a domain subscription to an API response.
func MapSubscriptionToResponse(sub *subscriptionDomain.EventSubscription) SubscriptionResponse {
	return SubscriptionResponse{
		SubscriptionID:  sub.ID.String(),
		ServiceName:     sub.ServiceName,
		EventType:       sub.EventType,
		WebhookURL:      sub.WebhookURL,
		RetryCount:      sub.RetryCount,
		TimeoutSeconds:  sub.TimeoutSeconds,
		IsActive:        sub.IsActive,
		LastDeliveredAt: sub.LastDeliveredAt,
		LastFailedAt:    sub.LastFailedAt,
		FailureReason:   sub.FailureReason,
		CreatedAt:       sub.CreatedAt,
	}
}

// MapSubscriptionsToListResponse converts domain subscriptions to a list response.
func MapSubscriptionsToListResponse(subs []*subscriptionDomain.EventSubscription) ListSubscriptionsResponse {
	data := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		data = append(data, MapSubscriptionToResponse(sub))
	}
	return ListSubscriptionsResponse{Data: data}
}
