package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventbus/internal/config"
	"github.com/allisson/eventbus/internal/metrics"
	outboxRepository "github.com/allisson/eventbus/internal/outbox/repository"
	subscriptionRepository "github.com/allisson/eventbus/internal/subscription/repository"
)

// newTestContainer returns a container whose database is a sqlmock connection.
func newTestContainer(t *testing.T, cfg *config.Config) (*Container, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	container := NewContainer(cfg)
	container.db = db
	container.dbInit.Do(func() {})

	t.Cleanup(func() {
		assert.NoError(t, container.Shutdown(context.Background()))
	})

	return container, mock
}

func TestNewContainer(t *testing.T) {
	cfg := &config.Config{LogLevel: "info"}

	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainer_Logger(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "debug"})

	assert.Nil(t, container.logger)
	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	infoLogger := NewContainer(&config.Config{LogLevel: "invalid"}).Logger()
	assert.False(t, infoLogger.Enabled(context.Background(), slog.LevelDebug))
}

func TestContainer_DBInitializationError(t *testing.T) {
	container := NewContainer(&config.Config{DBDriver: "invalid_driver"})

	_, err := container.DB()
	require.Error(t, err)

	_, err = container.DB()
	assert.Error(t, err, "the stored error is returned on later calls")

	_, err = container.OutboxRepository()
	assert.Error(t, err)
}

func TestContainer_Repositories(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		container, _ := newTestContainer(t, &config.Config{DBDriver: "postgres"})

		outboxRepo, err := container.OutboxRepository()
		require.NoError(t, err)
		assert.IsType(t, &outboxRepository.PostgreSQLOutboxEventRepository{}, outboxRepo)

		subscriptionRepo, err := container.SubscriptionRepository()
		require.NoError(t, err)
		assert.IsType(t, &subscriptionRepository.PostgreSQLSubscriptionRepository{}, subscriptionRepo)
	})

	t.Run("mysql", func(t *testing.T) {
		container, _ := newTestContainer(t, &config.Config{DBDriver: "mysql"})

		outboxRepo, err := container.OutboxRepository()
		require.NoError(t, err)
		assert.IsType(t, &outboxRepository.MySQLOutboxEventRepository{}, outboxRepo)

		subscriptionRepo, err := container.SubscriptionRepository()
		require.NoError(t, err)
		assert.IsType(t, &subscriptionRepository.MySQLSubscriptionRepository{}, subscriptionRepo)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		container, _ := newTestContainer(t, &config.Config{DBDriver: "sqlite"})

		_, err := container.OutboxRepository()
		assert.EqualError(t, err, "unsupported database driver: sqlite")

		_, err = container.SubscriptionRepository()
		assert.EqualError(t, err, "unsupported database driver: sqlite")
	})
}

func TestContainer_Metrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		container := NewContainer(&config.Config{MetricsEnabled: false})

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.Nil(t, provider)

		businessMetrics, err := container.BusinessMetrics()
		require.NoError(t, err)
		assert.IsType(t, &metrics.NoOpBusinessMetrics{}, businessMetrics)

		metricsServer, err := container.MetricsServer()
		require.NoError(t, err)
		assert.Nil(t, metricsServer)
	})

	t.Run("enabled", func(t *testing.T) {
		container := NewContainer(&config.Config{MetricsEnabled: true, MetricsNamespace: "eventbus_test"})
		defer func() {
			assert.NoError(t, container.Shutdown(context.Background()))
		}()

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		require.NotNil(t, provider)

		_, err = container.BusinessMetrics()
		require.NoError(t, err)

		metricsServer, err := container.MetricsServer()
		require.NoError(t, err)
		assert.NotNil(t, metricsServer)
	})
}

func TestContainer_MemoryBroker(t *testing.T) {
	cfg := &config.Config{
		BrokerDriver:         "memory",
		BrokerConsumerGroup:  "eventbus",
		BrokerTopics:         []string{"user-events"},
		BrokerPollTimeout:    100 * time.Millisecond,
		BrokerBreakerEnabled: true,
	}
	container := NewContainer(cfg)
	defer func() {
		assert.NoError(t, container.Shutdown(context.Background()))
	}()

	producer, err := container.Producer()
	require.NoError(t, err)
	require.NotNil(t, producer)

	consumer, err := container.Consumer()
	require.NoError(t, err)
	require.NotNil(t, consumer)

	assert.Same(t, container.MemoryBroker(), container.MemoryBroker())
}

func TestContainer_ConsumedTopicsCoverResolvedTopics(t *testing.T) {
	container := NewContainer(config.Load())
	topics := container.ConsumedTopics()
	resolver := container.TopicResolver()

	eventTypes := []string{
		"UserRegistered",
		"InvoicePaid",
		"CacheInvalidationRequested",
		"OrderPlaced",
		"billing.invoice.created",
	}
	for _, eventType := range eventTypes {
		assert.Contains(t, topics, resolver.Resolve(eventType, ""), eventType)
	}
}

func TestContainer_ConsumedTopicsIncludeMappedTopics(t *testing.T) {
	container := NewContainer(&config.Config{
		EventDefaultTopic: "platform-events",
		EventTopicMap:     map[string]string{"OrderPlaced": "order-events"},
		BrokerTopics:      []string{"user-events"},
	})

	assert.Equal(t, []string{"order-events", "platform-events", "user-events"}, container.ConsumedTopics())
	assert.Equal(t, "order-events", container.TopicResolver().Resolve("OrderPlaced", ""))
	assert.Equal(t, "platform-events", container.TopicResolver().Resolve("CacheInvalidationRequested", ""))
}

func TestContainer_UnsupportedBrokerDriver(t *testing.T) {
	container := NewContainer(&config.Config{BrokerDriver: "nats"})

	_, err := container.Producer()
	assert.EqualError(t, err, "unsupported broker driver: nats")

	_, err = container.Consumer()
	assert.EqualError(t, err, "unsupported broker driver: nats")
}

func TestContainer_RedisClient(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		client, err := NewContainer(&config.Config{}).RedisClient()
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := NewContainer(&config.Config{RedisURL: "ftp://cache"}).RedisClient()
		assert.Error(t, err)
	})

	t.Run("configured", func(t *testing.T) {
		server := miniredis.RunT(t)
		container := NewContainer(&config.Config{RedisURL: "redis://" + server.Addr()})
		defer func() {
			assert.NoError(t, container.Shutdown(context.Background()))
		}()

		client, err := container.RedisClient()
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.NoError(t, client.Ping(context.Background()).Err())
	})
}

func TestContainer_Router(t *testing.T) {
	server := miniredis.RunT(t)
	container, _ := newTestContainer(t, &config.Config{
		DBDriver:                      "postgres",
		RouterMaxConcurrentDeliveries: 4,
		RedisURL:                      "redis://" + server.Addr(),
	})

	eventRouter, err := container.Router()
	require.NoError(t, err)
	require.NotNil(t, eventRouter)

	again, err := container.Router()
	require.NoError(t, err)
	assert.Same(t, eventRouter, again)
}

func TestContainer_PublisherUseCase(t *testing.T) {
	container, _ := newTestContainer(t, &config.Config{
		DBDriver:                 "postgres",
		BrokerDriver:             "memory",
		OutboxPollInterval:       time.Second,
		OutboxBatchSize:          10,
		OutboxMaxPublishAttempts: 5,
	})

	publisher, err := container.PublisherUseCase()
	require.NoError(t, err)
	assert.NotNil(t, publisher)
}

func TestContainer_HTTPServer(t *testing.T) {
	container, _ := newTestContainer(t, &config.Config{
		DBDriver:         "postgres",
		ServerHost:       "localhost",
		ServerPort:       0,
		MetricsEnabled:   true,
		MetricsNamespace: "eventbus_test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := container.HTTPServer(ctx)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContainer_Supervisor(t *testing.T) {
	container := NewContainer(&config.Config{SupervisorMaxBackoff: time.Second})

	assert.Same(t, container.Supervisor(), container.Supervisor())
}

func TestContainer_ShutdownWithoutComponents(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "info"})

	assert.NoError(t, container.Shutdown(context.Background()))
}
