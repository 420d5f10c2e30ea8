// Package dto provides data transfer objects for outbox HTTP requests and responses.
package dto

import (
	"encoding/json"

	validation "github.com/jellydator/validation"

	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
	customValidation "github.com/allisson/eventbus/internal/validation"
)

// AppendEventRequest contains the parameters for appending an event to the outbox.
type AppendEventRequest struct {
	EventType     string          `json:"eventType"`
	EventData     json.RawMessage `json:"eventData"`
	CorrelationID string          `json:"correlationId,omitempty"`
	// Topic and PartitionKey override the derived routing fields.
	Topic        string `json:"topic,omitempty"`
	PartitionKey string `json:"partitionKey,omitempty"`
}

// Validate checks if the append event request is valid.
func (r *AppendEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EventType,
			validation.Required,
			customValidation.EventType,
		),
		validation.Field(&r.EventData,
			validation.Required,
			customValidation.JSONObject,
		),
		validation.Field(&r.CorrelationID, validation.Length(0, 255), customValidation.NoWhitespace),
		validation.Field(&r.Topic, validation.Length(0, 255), customValidation.NoWhitespace),
		validation.Field(&r.PartitionKey, validation.Length(0, 255), customValidation.NotBlank),
	)
}

// ToInput maps the request to the use case input. fallbackCorrelationID is
// used when the request carries none.
func (r *AppendEventRequest) ToInput(fallbackCorrelationID string) outboxUsecase.AppendEventInput {
	correlationID := r.CorrelationID
	if correlationID == "" {
		correlationID = fallbackCorrelationID
	}
	return outboxUsecase.AppendEventInput{
		EventType:     r.EventType,
		EventData:     r.EventData,
		Topic:         r.Topic,
		PartitionKey:  r.PartitionKey,
		CorrelationID: correlationID,
	}
}
