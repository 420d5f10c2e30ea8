package broker

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Envelope is the immutable value carried on the wire for every event.
// EventID is opaque: the outbox emits UUIDv7 strings, other producers may not.
type Envelope struct {
	EventID       string
	EventType     string
	OccurredAt    time.Time
	CorrelationID string
	// Pattern is an optional routing hint for cache invalidation events.
	Pattern string
	Payload json.RawMessage
}

// wireEnvelope is the JSON representation of Envelope. Timestamp is unix milliseconds.
type wireEnvelope struct {
	EventType     string          `json:"eventType"`
	EventID       string          `json:"eventId"`
	Timestamp     int64           `json:"timestamp"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Pattern       string          `json:"pattern,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Encode serializes env. A payload that is not valid JSON yields a SerializationError.
func Encode(env Envelope) ([]byte, error) {
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return nil, &SerializationError{Err: errors.New("payload is not valid JSON")}
	}

	b, err := json.Marshal(wireEnvelope{
		EventType:     env.EventType,
		EventID:       env.EventID,
		Timestamp:     env.OccurredAt.UnixMilli(),
		CorrelationID: env.CorrelationID,
		Pattern:       env.Pattern,
		Data:          payload,
	})
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return b, nil
}

// Decode parses a wire envelope. It fails when the document is malformed or
// lacks an event type or an event id.
func Decode(b []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope{}, &SerializationError{Err: err}
	}
	if w.EventType == "" {
		return Envelope{}, &SerializationError{Err: errors.New("missing eventType")}
	}

	if strings.TrimSpace(w.EventID) == "" {
		return Envelope{}, &SerializationError{Err: errors.New("missing eventId")}
	}

	return Envelope{
		EventID:       w.EventID,
		EventType:     w.EventType,
		OccurredAt:    time.UnixMilli(w.Timestamp).UTC(),
		CorrelationID: w.CorrelationID,
		Pattern:       w.Pattern,
		Payload:       w.Data,
	}, nil
}
