package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a business metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusError, StatusOf(errors.New("broker down")))
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "eventbus_operations_total", metricName("eventbus", "operations_total"))
	assert.Equal(t, "operations_total", metricName("", "operations_total"))
}

func TestNewBusinessMetrics_EmptyNamespace(t *testing.T) {
	provider, err := NewProvider("")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "")
	require.NoError(t, err)

	bm.RecordOperation(context.Background(), DomainOutbox, "event_publish", StatusSuccess)
	assert.Regexp(t, `(?m)^operations_total\{[^}]*domain="outbox"[^}]*\} 1`, scrape(t, provider))
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("eventbus")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "eventbus")

	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()

	assert.IsType(t, &NoOpBusinessMetrics{}, noOpMetrics)
	assert.NotPanics(t, func() {
		noOpMetrics.RecordOperation(context.Background(), DomainOutbox, "event_publish", StatusRetry)
		noOpMetrics.RecordDuration(
			context.Background(), DomainSubscription, "webhook_deliver", 200*time.Millisecond, StatusError,
		)
	})
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordOperation(ctx, DomainOutbox, "event_publish", StatusSuccess)
	bm.RecordOperation(ctx, DomainOutbox, "event_publish", StatusSuccess)
	bm.RecordOperation(ctx, DomainOutbox, "event_publish", StatusRetry)
	bm.RecordOperation(ctx, DomainOutbox, "event_publish", StatusDeadLetter)
	bm.RecordOperation(ctx, DomainSubscription, "webhook_deliver", StatusError)
	bm.RecordOperation(ctx, DomainRouter, "event_route", StatusSuccess)

	bm.RecordDuration(ctx, DomainOutbox, "event_publish", 3*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, DomainOutbox, "event_publish", 40*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, DomainSubscription, "webhook_deliver", 12*time.Second, StatusError)

	output := scrape(t, provider)

	assertBizMetricLine(t, output, `integration_test_operations_total`,
		`domain="outbox".*operation="event_publish".*status="success"`, `2`)
	assertBizMetricLine(t, output, `integration_test_operations_total`,
		`domain="outbox".*operation="event_publish".*status="retry"`, `1`)
	assertBizMetricLine(t, output, `integration_test_operations_total`,
		`domain="outbox".*operation="event_publish".*status="dead_letter"`, `1`)
	assertBizMetricLine(t, output, `integration_test_operations_total`,
		`domain="subscription".*operation="webhook_deliver".*status="error"`, `1`)
	assertBizMetricLine(t, output, `integration_test_operations_total`,
		`domain="router".*operation="event_route".*status="success"`, `1`)

	assertBizMetricLine(t, output, `integration_test_operation_duration_seconds_count`,
		`domain="outbox".*operation="event_publish".*status="success"`, `2`)
	assertBizMetricLine(t, output, `integration_test_operation_duration_seconds_bucket`,
		`domain="outbox".*operation="event_publish".*status="success".*le="0.005"`, `1`)
	assertBizMetricLine(t, output, `integration_test_operation_duration_seconds_bucket`,
		`domain="subscription".*operation="webhook_deliver".*status="error".*le="10"`, `0`)
	assertBizMetricLine(t, output, `integration_test_operation_duration_seconds_bucket`,
		`domain="subscription".*operation="webhook_deliver".*status="error".*le="30"`, `1`)
}
