// Package dto provides data transfer objects for subscription HTTP requests and responses.
package dto

import (
	validation "github.com/jellydator/validation"

	subscriptionUsecase "github.com/allisson/eventbus/internal/subscription/usecase"
	customValidation "github.com/allisson/eventbus/internal/validation"
)

// SubscribeRequest contains the parameters for registering a webhook.
type SubscribeRequest struct {
	ServiceName    string `json:"serviceName"`
	EventType      string `json:"eventType"`
	WebhookURL     string `json:"webhookUrl"`
	RetryCount     *int   `json:"retryCount,omitempty"`
	TimeoutSeconds *int   `json:"timeoutSeconds,omitempty"`
}

// Validate checks if the subscribe request is valid.
func (r *SubscribeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ServiceName,
			validation.Required,
			customValidation.ServiceName,
		),
		validation.Field(&r.EventType,
			validation.Required,
			customValidation.EventType,
		),
		validation.Field(&r.WebhookURL,
			validation.Required,
			validation.Length(1, 2048),
			customValidation.WebhookURL,
		),
		validation.Field(&r.RetryCount, validation.NilOrNotEmpty, validation.Min(1), validation.Max(20)),
		validation.Field(&r.TimeoutSeconds, validation.NilOrNotEmpty, validation.Min(1), validation.Max(300)),
	)
}

// ToInput maps the request to the use case input.
func (r *SubscribeRequest) ToInput() subscriptionUsecase.SubscribeInput {
	return subscriptionUsecase.SubscribeInput{
		ServiceName:    r.ServiceName,
		EventType:      r.EventType,
		WebhookURL:     r.WebhookURL,
		RetryCount:     r.RetryCount,
		TimeoutSeconds: r.TimeoutSeconds,
	}
}
