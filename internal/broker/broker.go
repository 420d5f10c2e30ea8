// Package broker defines the message broker abstraction used by the outbox
// publisher and the event consumer, together with the wire envelope.
//
// Drivers live in subpackages (kafka, rabbitmq, memory). All of them publish
// with full acknowledgment, keep per-partition-key ordering, and acknowledge
// consumed messages only after the handler returns.
package broker

import (
	"context"
)

// HeaderEventType is the message header carrying the event type.
const HeaderEventType = "EventType"

// Producer publishes envelopes to topics.
type Producer interface {
	// Publish sends env to topic and waits for the broker acknowledgment.
	// Messages sharing a non-empty partitionKey are delivered in publish order.
	Publish(ctx context.Context, topic string, partitionKey string, env Envelope) error
	Close() error
}

// Handler processes a consumed envelope. A *RedeliveryError stops the consumer
// before the message is acknowledged and is returned from Subscribe. Any other
// error is logged and the message is acknowledged.
type Handler func(ctx context.Context, env Envelope) error

// Consumer receives envelopes from topics as a member of a consumer group.
type Consumer interface {
	// Subscribe blocks, dispatching messages from topics to handler until ctx
	// is canceled. It returns nil on cancellation and the handler's
	// *RedeliveryError when a message must be redelivered.
	Subscribe(ctx context.Context, topics []string, handler Handler) error
	Close() error
}
