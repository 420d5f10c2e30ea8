package domain

import (
	"github.com/allisson/eventbus/internal/errors"
)

// Outbox-specific error definitions.
var (
	// ErrOutboxEventNotFound indicates the outbox event does not exist.
	ErrOutboxEventNotFound = errors.Wrap(errors.ErrNotFound, "outbox event not found")

	// ErrOutboxEventAlreadyPublished indicates a published event cannot be requeued.
	ErrOutboxEventAlreadyPublished = errors.Wrap(errors.ErrConflict, "outbox event already published")

	// ErrInvalidEventType indicates the event type is empty or malformed.
	ErrInvalidEventType = errors.Wrap(errors.ErrInvalidInput, "invalid event type")

	// ErrInvalidEventPayload indicates the event payload is not a JSON document.
	ErrInvalidEventPayload = errors.Wrap(errors.ErrInvalidInput, "invalid event payload")
)
