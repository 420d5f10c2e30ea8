package rabbitmq

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/eventbus/internal/broker"
)

// consumeChannel is the subset of *amqp.Channel used by Consumer.
type consumeChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(
		queue, consumer string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp.Table,
	) (<-chan amqp.Delivery, error)
	Close() error
}

// ConsumerConfig configures a RabbitMQ consumer group member.
type ConsumerConfig struct {
	Group    string
	Prefetch int
}

// Consumer receives envelopes from the group queue and acks each delivery
// after the handler returns.
type Consumer struct {
	cfg         ConsumerConfig
	openChannel func() (consumeChannel, error)
	logger      *slog.Logger
}

// NewConsumer creates a Consumer opening its channels on conn. Each Subscribe
// opens a fresh channel, so a restarted Subscribe reconnects after a broker outage.
func NewConsumer(conn *Connection, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	return &Consumer{
		cfg: cfg,
		openChannel: func() (consumeChannel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		logger: logger,
	}
}

// Subscribe declares the group queue, binds it to each topic exchange and
// dispatches deliveries until ctx is canceled.
func (c *Consumer) Subscribe(ctx context.Context, topics []string, handler broker.Handler) error {
	ch, err := c.openChannel()
	if err != nil {
		return &broker.TransientError{Op: "open channel", Err: err}
	}
	defer func() {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("failed to close amqp channel", slog.Any("error", err))
		}
	}()

	deliveries, err := c.setup(ch, topics)
	if err != nil {
		return err
	}

	c.logger.Info("rabbitmq consumer started",
		slog.String("group", c.cfg.Group),
		slog.Any("topics", topics),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("rabbitmq consumer stopped", slog.String("group", c.cfg.Group))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return &broker.TransientError{Op: "consume", Err: errors.New("delivery channel closed")}
			}
			if err := c.handle(context.WithoutCancel(ctx), d, handler); err != nil {
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("failed to requeue delivery", slog.Any("error", nackErr))
				}
				return err
			}
			if err := d.Ack(false); err != nil {
				return &broker.TransientError{Op: "ack", Err: err}
			}
		}
	}
}

func (c *Consumer) setup(ch consumeChannel, topics []string) (<-chan amqp.Delivery, error) {
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, &broker.TransientError{Op: "qos", Err: err}
	}

	queue, err := ch.QueueDeclare(c.cfg.Group, true, false, false, false, nil)
	if err != nil {
		return nil, &broker.TransientError{Op: "declare queue", Err: err}
	}

	for _, topic := range topics {
		if err := ch.ExchangeDeclare(topic, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return nil, &broker.TransientError{Op: "declare exchange", Err: err}
		}
		if err := ch.QueueBind(queue.Name, "#", topic, false, nil); err != nil {
			return nil, &broker.TransientError{Op: "bind queue", Err: err}
		}
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, &broker.TransientError{Op: "consume", Err: err}
	}
	return deliveries, nil
}

// handle decodes and dispatches d. It returns an error only when d must be
// requeued instead of acked.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler broker.Handler) error {
	env, err := broker.Decode(d.Body)
	if err != nil {
		c.logger.Warn("skipping undecodable message",
			slog.String("exchange", d.Exchange),
			slog.String("message_id", d.MessageId),
			slog.Any("error", err),
		)
		return nil
	}

	if err := handler(ctx, env); err != nil {
		if broker.IsRedelivery(err) {
			c.logger.Warn("event requeued for redelivery",
				slog.String("event_id", env.EventID),
				slog.Any("error", err),
			)
			return err
		}
		c.logger.Error("event handler failed",
			slog.String("event_id", env.EventID),
			slog.String("event_type", env.EventType),
			slog.Any("error", err),
		)
	}
	return nil
}

// Close is a no-op. Subscribe owns its channel and the caller owns the connection.
func (c *Consumer) Close() error {
	return nil
}

var _ broker.Consumer = (*Consumer)(nil)
