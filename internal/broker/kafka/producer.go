// Package kafka implements the broker Producer and Consumer on Apache Kafka
// using segmentio/kafka-go.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/allisson/eventbus/internal/broker"
)

// messageWriter is the subset of *kafka.Writer used by Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig configures a Kafka producer.
type ProducerConfig struct {
	Brokers        []string
	PublishTimeout time.Duration
}

// Producer publishes envelopes to Kafka topics. Messages are hashed on the
// partition key and written synchronously with acknowledgment from all in-sync replicas.
type Producer struct {
	writer         messageWriter
	publishTimeout time.Duration
}

// NewWriter builds the kafka-go writer used by NewProducer.
func NewWriter(cfg ProducerConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           5 * time.Millisecond,
		WriteTimeout:           cfg.PublishTimeout,
		AllowAutoTopicCreation: true,
	}
}

// NewProducer creates a Producer writing through w.
func NewProducer(w *kafka.Writer, publishTimeout time.Duration) *Producer {
	return newProducer(w, publishTimeout)
}

func newProducer(w messageWriter, publishTimeout time.Duration) *Producer {
	return &Producer{writer: w, publishTimeout: publishTimeout}
}

// Publish encodes env and writes it to topic keyed by partitionKey.
func (p *Producer) Publish(ctx context.Context, topic string, partitionKey string, env broker.Envelope) error {
	value, err := broker.Encode(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Value: value,
		Headers: []kafka.Header{
			{Key: broker.HeaderEventType, Value: []byte(env.EventType)},
		},
	}
	if partitionKey != "" {
		msg.Key = []byte(partitionKey)
	}

	if p.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return &broker.TransientError{Op: "publish", Err: err}
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

var _ broker.Producer = (*Producer)(nil)
