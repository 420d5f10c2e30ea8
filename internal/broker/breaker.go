package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around a Producer.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

type breakerProducer struct {
	next    Producer
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProducer wraps next with a circuit breaker. Once ConsecutiveFailures
// transient failures happen in a row, Publish fails fast with a TransientError
// wrapping ErrCircuitOpen until OpenTimeout passes and a trial publish
// succeeds. Serialization errors do not count as failures.
func NewBreakerProducer(next Producer, cfg BreakerConfig, logger *slog.Logger) Producer {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("broker circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
	}

	return &breakerProducer{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Publish forwards to the wrapped producer through the breaker.
func (b *breakerProducer) Publish(ctx context.Context, topic string, partitionKey string, env Envelope) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Publish(ctx, topic, partitionKey, env)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransientError{Op: "publish", Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
	}
	return err
}

// Close closes the wrapped producer.
func (b *breakerProducer) Close() error {
	return b.next.Close()
}
