// Package memory implements an in-process broker on gocloud.dev/pubsub/mempubsub.
// It is meant for local development and tests; messages live only as long as the process.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/eventbus/internal/broker"
)

const metadataPartitionKey = "PartitionKey"

// Broker owns the in-memory topics and the per-group subscriptions on them.
// A message sent to a topic reaches every group subscribed before the send.
type Broker struct {
	mu          sync.Mutex
	topics      map[string]*pubsub.Topic
	subs        map[string]*pubsub.Subscription
	ackDeadline time.Duration
}

// New creates an empty Broker. Unacked messages are redelivered after ackDeadline.
func New(ackDeadline time.Duration) *Broker {
	if ackDeadline <= 0 {
		ackDeadline = time.Minute
	}
	return &Broker{
		topics:      make(map[string]*pubsub.Topic),
		subs:        make(map[string]*pubsub.Subscription),
		ackDeadline: ackDeadline,
	}
}

func (b *Broker) topic(name string) *pubsub.Topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topicLocked(name)
}

func (b *Broker) topicLocked(name string) *pubsub.Topic {
	t, ok := b.topics[name]
	if !ok {
		t = mempubsub.NewTopic()
		b.topics[name] = t
	}
	return t
}

func (b *Broker) subscription(group, topic string) *pubsub.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := group + "/" + topic
	s, ok := b.subs[key]
	if !ok {
		s = mempubsub.NewSubscription(b.topicLocked(topic), b.ackDeadline)
		b.subs[key] = s
	}
	return s
}

// Producer returns a Producer sending to this broker.
func (b *Broker) Producer() *Producer {
	return &Producer{broker: b}
}

// Consumer returns a Consumer for group. Subscriptions for topics are created
// immediately so messages published from now on are retained for the group.
func (b *Broker) Consumer(group string, topics []string, pollTimeout time.Duration, logger *slog.Logger) *Consumer {
	for _, topic := range topics {
		b.subscription(group, topic)
	}
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Consumer{broker: b, group: group, pollTimeout: pollTimeout, logger: logger}
}

// Close shuts down every subscription and topic.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for key, s := range b.subs {
		errs = append(errs, s.Shutdown(ctx))
		delete(b.subs, key)
	}
	for name, t := range b.topics {
		errs = append(errs, t.Shutdown(ctx))
		delete(b.topics, name)
	}
	return errors.Join(errs...)
}

// Producer sends envelopes to in-memory topics.
type Producer struct {
	broker *Broker
}

// Publish encodes env and sends it to topic.
func (p *Producer) Publish(ctx context.Context, topic string, partitionKey string, env broker.Envelope) error {
	body, err := broker.Encode(env)
	if err != nil {
		return err
	}

	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			broker.HeaderEventType: env.EventType,
			metadataPartitionKey:   partitionKey,
		},
	}
	if err := p.broker.topic(topic).Send(ctx, msg); err != nil {
		return &broker.TransientError{Op: "publish", Err: err}
	}
	return nil
}

// Close is a no-op; topics are owned by the Broker.
func (p *Producer) Close() error {
	return nil
}

// Consumer receives envelopes for a group.
type Consumer struct {
	broker      *Broker
	group       string
	pollTimeout time.Duration
	logger      *slog.Logger
}

// Subscribe receives from each topic concurrently until ctx is canceled.
func (c *Consumer) Subscribe(ctx context.Context, topics []string, handler broker.Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		sub := c.broker.subscription(c.group, topic)
		g.Go(func() error {
			return c.receive(gctx, sub, handler)
		})
	}
	return g.Wait()
}

func (c *Consumer) receive(ctx context.Context, sub *pubsub.Subscription, handler broker.Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.pollTimeout)
		msg, err := sub.Receive(pollCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return &broker.TransientError{Op: "receive", Err: err}
		}

		env, err := broker.Decode(msg.Body)
		if err != nil {
			c.logger.Warn("skipping undecodable message", slog.Any("error", err))
		} else if err := handler(context.WithoutCancel(ctx), env); err != nil {
			if broker.IsRedelivery(err) {
				c.logger.Warn("event nacked for redelivery",
					slog.String("event_id", env.EventID),
					slog.Any("error", err),
				)
				msg.Nack()
				return err
			}
			c.logger.Error("event handler failed",
				slog.String("event_id", env.EventID),
				slog.String("event_type", env.EventType),
				slog.Any("error", err),
			)
		}
		msg.Ack()
	}
}

// Close is a no-op; subscriptions are owned by the Broker.
func (c *Consumer) Close() error {
	return nil
}

var (
	_ broker.Producer = (*Producer)(nil)
	_ broker.Consumer = (*Consumer)(nil)
)
