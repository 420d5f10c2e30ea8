package dto

import (
	"encoding/json"
	"time"

	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// AppendEventResponse is returned when an event is accepted into the outbox.
type AppendEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
	// Timestamp is the event occurrence time in unix milliseconds.
	Timestamp     int64  `json:"timestamp"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// RequeueEventResponse is returned when a dead-lettered event is requeued.
type RequeueEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

// OutboxEventResponse represents an outbox event in API responses.
type OutboxEventResponse struct {
	EventID          string          `json:"eventId"`
	EventType        string          `json:"eventType"`
	EventData        json.RawMessage `json:"eventData"`
	Topic            string          `json:"topic"`
	PartitionKey     *string         `json:"partitionKey,omitempty"`
	CorrelationID    *string         `json:"correlationId,omitempty"`
	PublishAttempts  int             `json:"publishAttempts"`
	LastErrorMessage *string         `json:"lastErrorMessage,omitempty"`
	OccurredAt       time.Time       `json:"occurredAt"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// ListOutboxEventsResponse represents a paginated list of outbox events.
type ListOutboxEventsResponse struct {
	Data []OutboxEventResponse `json:"data"`
}

// MapOutboxEventToAppendResponse converts a stored event to an append response.
func MapOutboxEventToAppendResponse(event *outboxDomain.OutboxEvent) AppendEventResponse {
	response := AppendEventResponse{
		Success:   true,
		EventID:   event.ID.String(),
		Timestamp: event.OccurredAt.UnixMilli(),
	}
	if event.CorrelationID != nil {
		response.CorrelationID = *event.CorrelationID
	}
	return response
}

// MapOutboxEventsToListResponse converts stored events to a list response.
func MapOutboxEventsToListResponse(events []*outboxDomain.OutboxEvent) ListOutboxEventsResponse {
	data := make([]OutboxEventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, OutboxEventResponse{
			EventID:          event.ID.String(),
			EventType:        event.EventType,
			EventData:        json.RawMessage(event.EventPayload),
			Topic:            event.Topic,
			PartitionKey:     event.PartitionKey,
			CorrelationID:    event.CorrelationID,
			PublishAttempts:  event.PublishAttempts,
			LastErrorMessage: event.LastErrorMessage,
			OccurredAt:       event.OccurredAt,
			CreatedAt:        event.CreatedAt,
		})
	}
	return ListOutboxEventsResponse{Data: data}
}
