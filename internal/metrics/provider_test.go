package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()

	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewProvider(t *testing.T) {
	t.Run("Success_CreateProviderWithNamespace", func(t *testing.T) {
		provider, err := NewProvider("eventbus")

		require.NoError(t, err)
		assert.NotNil(t, provider.meterProvider)
		assert.NotNil(t, provider.exporter)
		assert.NotNil(t, provider.registry)
		assert.NotNil(t, provider.MeterProvider())
	})

	t.Run("Success_CreateProviderWithEmptyNamespace", func(t *testing.T) {
		provider, err := NewProvider("")

		require.NoError(t, err)
		assert.NotNil(t, provider)
	})

	t.Run("Success_ProvidersDoNotShareRegistry", func(t *testing.T) {
		first, err := NewProvider("eventbus")
		require.NoError(t, err)
		second, err := NewProvider("eventbus")
		require.NoError(t, err)

		assert.NotSame(t, first.registry, second.registry)
	})
}

func TestProvider_Handler_ExposesRuntimeMetrics(t *testing.T) {
	provider, err := NewProvider("eventbus")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	output := scrape(t, provider)

	assert.Contains(t, output, "go_goroutines")
}

func TestProvider_LatencyBuckets(t *testing.T) {
	provider, err := NewProvider("eventbus")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	meter := provider.MeterProvider().Meter("eventbus")
	histo, err := meter.Float64Histogram("eventbus_broker_publish_duration_seconds")
	require.NoError(t, err)
	histo.Record(context.Background(), 0.2)

	output := scrape(t, provider)

	assert.Regexp(t, `eventbus_broker_publish_duration_seconds_bucket\{[^}]*le="0.005"[^}]*\} 0`, output)
	assert.Regexp(t, `eventbus_broker_publish_duration_seconds_bucket\{[^}]*le="0.25"[^}]*\} 1`, output)
	assert.Regexp(t, `eventbus_broker_publish_duration_seconds_bucket\{[^}]*le="60"[^}]*\} 1`, output)
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Success_ShutdownProvider", func(t *testing.T) {
		provider, err := NewProvider("eventbus")
		require.NoError(t, err)

		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("Success_ShutdownNilProvider", func(t *testing.T) {
		provider := &Provider{meterProvider: nil}

		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
