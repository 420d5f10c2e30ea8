package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Domains label which part of the bus recorded an operation.
const (
	DomainOutbox       = "outbox"
	DomainSubscription = "subscription"
	DomainRouter       = "router"
)

// Statuses label the outcome of an operation.
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusRetry      = "retry"
	StatusDeadLetter = "dead_letter"
)

// StatusOf maps an operation error to StatusSuccess or StatusError.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// metricName prefixes name with namespace, or returns name alone when namespace is empty.
func metricName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

// BusinessMetrics records counts and latencies of event bus operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("outbox", "event_publish", "retry").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the latency of one operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewBusinessMetrics creates the operation counter and latency histogram on
// meterProvider. Both names are prefixed with namespace when it is set.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		metricName(namespace, "operations_total"),
		metric.WithDescription("Total number of event bus operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		metricName(namespace, "operation_duration_seconds"),
		metric.WithDescription("Duration of event bus operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
	}, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

// NoOpBusinessMetrics discards every measurement. It is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}
