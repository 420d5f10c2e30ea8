package broker

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when using a producer or consumer after Close.
var ErrClosed = errors.New("broker: closed")

// ErrCircuitOpen is wrapped by publishes rejected while the broker circuit is open.
var ErrCircuitOpen = errors.New("broker: circuit open")

// TransientError wraps failures that may succeed on a later attempt:
// timeouts, unavailable brokers, missing acknowledgments, an open breaker.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// SerializationError wraps failures to encode or decode an envelope.
// Retrying cannot fix them.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("broker serialization: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a publish failure should be retried.
// Only serialization errors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var serErr *SerializationError
	return !errors.As(err, &serErr)
}

// RedeliveryError is returned by a Handler that could not process a message
// because a dependency is unavailable. The consumer leaves the message
// unacknowledged and Subscribe returns the error, so the message is
// redelivered once the consumer is restarted.
type RedeliveryError struct {
	Err error
}

func (e *RedeliveryError) Error() string {
	return fmt.Sprintf("redeliver: %v", e.Err)
}

func (e *RedeliveryError) Unwrap() error {
	return e.Err
}

// IsRedelivery reports whether a handler error asks for the message to be redelivered.
func IsRedelivery(err error) bool {
	var redeliveryErr *RedeliveryError
	return errors.As(err, &redeliveryErr)
}
