package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/allisson/eventbus/internal/broker"
)

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig configures a Kafka consumer group member.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	PollTimeout time.Duration
}

// Consumer reads envelopes as a member of a Kafka consumer group. Offsets are
// committed only after the handler returns.
type Consumer struct {
	cfg       ConsumerConfig
	newReader func(topics []string) messageReader
	logger    *slog.Logger
}

// NewConsumer creates a Consumer for the given group.
func NewConsumer(cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	return &Consumer{
		cfg: cfg,
		newReader: func(topics []string) messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:     cfg.Brokers,
				GroupID:     cfg.GroupID,
				GroupTopics: topics,
				MinBytes:    1,
				MaxBytes:    10e6,
				StartOffset: kafka.FirstOffset,
			})
		},
		logger: logger,
	}
}

// Subscribe joins the consumer group for topics and dispatches messages to
// handler until ctx is canceled. Each poll is bounded by PollTimeout and is
// not interrupted by cancellation, so a message fetched during shutdown is
// still handled and committed before Subscribe returns.
func (c *Consumer) Subscribe(ctx context.Context, topics []string, handler broker.Handler) error {
	reader := c.newReader(topics)
	defer func() {
		if err := reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", slog.Any("error", err))
		}
	}()

	c.logger.Info("kafka consumer started",
		slog.String("group_id", c.cfg.GroupID),
		slog.Any("topics", topics),
	)

	pollTimeout := c.cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("kafka consumer stopped", slog.String("group_id", c.cfg.GroupID))
			return nil
		}

		pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pollTimeout)
		msg, err := reader.FetchMessage(pollCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &broker.TransientError{Op: "fetch", Err: err}
		}

		if err := c.handle(context.WithoutCancel(ctx), msg, handler); err != nil {
			// The offset stays uncommitted; the group resumes from it after a restart.
			return err
		}

		if err := reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			return &broker.TransientError{Op: "commit", Err: err}
		}
	}
}

// handle decodes and dispatches msg. It returns an error only when the
// message must not be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler broker.Handler) error {
	env, err := broker.Decode(msg.Value)
	if err != nil {
		c.logger.Warn("skipping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err),
		)
		return nil
	}

	if err := handler(ctx, env); err != nil {
		if broker.IsRedelivery(err) {
			c.logger.Warn("event left uncommitted for redelivery",
				slog.String("event_id", env.EventID),
				slog.Int64("offset", msg.Offset),
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

// Close is a no-op; readers are owned by Subscribe.
func (c *Consumer) Close() error {
	return nil
}

var _ broker.Consumer = (*Consumer)(nil)
