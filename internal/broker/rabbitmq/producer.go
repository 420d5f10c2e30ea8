// Package rabbitmq implements the broker Producer and Consumer on RabbitMQ
// using rabbitmq/amqp091-go.
//
// Each topic maps to a durable topic exchange and the partition key is used as
// routing key. A consumer group is a durable queue bound to every subscribed
// exchange, so group members compete for messages and each queue keeps publish order.
package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/eventbus/internal/broker"
)

// ErrNotAcknowledged is returned when the broker nacks a publish.
var ErrNotAcknowledged = errors.New("publish not acknowledged by broker")

// publisher is the confirm-mode publishing surface used by Producer.
type publisher interface {
	DeclareExchange(name string) error
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	Close() error
}

// Producer publishes envelopes to RabbitMQ with publisher confirms. The
// confirm channel is opened on first publish and reopened after a failure.
type Producer struct {
	mu             sync.Mutex
	open           func() (publisher, error)
	pub            publisher
	declared       map[string]struct{}
	publishTimeout time.Duration
	closed         bool
}

// NewProducer creates a Producer opening confirm-mode channels on conn.
func NewProducer(conn *Connection, publishTimeout time.Duration) *Producer {
	return newProducer(func() (publisher, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, &broker.TransientError{Op: "enable confirms", Err: err}
		}
		return &confirmChannel{ch: ch}, nil
	}, publishTimeout)
}

func newProducer(open func() (publisher, error), publishTimeout time.Duration) *Producer {
	return &Producer{
		open:           open,
		declared:       make(map[string]struct{}),
		publishTimeout: publishTimeout,
	}
}

// Publish encodes env and publishes it persistently to the topic exchange,
// waiting for the broker confirm. Publishes are serialized on the channel.
func (p *Producer) Publish(ctx context.Context, topic string, partitionKey string, env broker.Envelope) error {
	body, err := broker.Encode(env)
	if err != nil {
		return err
	}

	if p.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &broker.TransientError{Op: "publish", Err: broker.ErrClosed}
	}

	if p.pub == nil {
		pub, err := p.open()
		if err != nil {
			return &broker.TransientError{Op: "open channel", Err: err}
		}
		p.pub = pub
	}

	if _, ok := p.declared[topic]; !ok {
		if err := p.pub.DeclareExchange(topic); err != nil {
			p.reset()
			return &broker.TransientError{Op: "declare exchange", Err: err}
		}
		p.declared[topic] = struct{}{}
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.EventID,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.OccurredAt,
		Type:          env.EventType,
		Headers:       amqp.Table{broker.HeaderEventType: env.EventType},
		Body:          body,
	}

	if err := p.pub.Publish(ctx, topic, partitionKey, msg); err != nil {
		// A nack leaves the channel usable; anything else may have broken it.
		if !errors.Is(err, ErrNotAcknowledged) {
			p.reset()
		}
		return &broker.TransientError{Op: "publish", Err: err}
	}
	return nil
}

// reset drops the current channel so the next publish opens a fresh one.
func (p *Producer) reset() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	p.pub = nil
	clear(p.declared)
}

// Close closes the publishing channel.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.pub == nil {
		return nil
	}
	err := p.pub.Close()
	p.pub = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// confirmChannel adapts *amqp.Channel in confirm mode to publisher.
type confirmChannel struct {
	ch *amqp.Channel
}

func (c *confirmChannel) DeclareExchange(name string) error {
	return c.ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

func (c *confirmChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNotAcknowledged
	}
	return nil
}

func (c *confirmChannel) Close() error {
	return c.ch.Close()
}

var _ broker.Producer = (*Producer)(nil)
