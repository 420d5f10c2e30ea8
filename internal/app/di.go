// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/eventbus/internal/broker"
	"github.com/allisson/eventbus/internal/broker/memory"
	rabbitBroker "github.com/allisson/eventbus/internal/broker/rabbitmq"
	"github.com/allisson/eventbus/internal/config"
	"github.com/allisson/eventbus/internal/database"
	"github.com/allisson/eventbus/internal/http"
	"github.com/allisson/eventbus/internal/metrics"
	outboxHTTP "github.com/allisson/eventbus/internal/outbox/http"
	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
	"github.com/allisson/eventbus/internal/router"
	subscriptionHTTP "github.com/allisson/eventbus/internal/subscription/http"
	subscriptionUsecase "github.com/allisson/eventbus/internal/subscription/usecase"
	"github.com/allisson/eventbus/internal/supervisor"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	amqpConn        *rabbitBroker.Connection
	memoryBroker    *memory.Broker
	redisClient     redis.UniversalClient

	// Broker
	producer broker.Producer
	consumer broker.Consumer

	// Outbox
	outboxRepo       outboxUsecase.OutboxEventRepository
	outboxUseCase    outboxUsecase.OutboxUseCase
	publisherUseCase outboxUsecase.PublisherUseCase
	outboxHandler    *outboxHTTP.OutboxHandler

	// Subscriptions
	subscriptionRepo    subscriptionUsecase.SubscriptionRepository
	subscriptionUseCase subscriptionUsecase.SubscriptionUseCase
	deliveryUseCase     subscriptionUsecase.DeliveryUseCase
	subscriptionHandler *subscriptionHTTP.SubscriptionHandler

	// Routing, servers and supervision
	eventRouter   *router.Router
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	supervisor    *supervisor.Supervisor

	mu                      sync.Mutex
	loggerInit              sync.Once
	dbInit                  sync.Once
	txManagerInit           sync.Once
	metricsProviderInit     sync.Once
	businessMetricsInit     sync.Once
	amqpConnInit            sync.Once
	memoryBrokerInit        sync.Once
	redisClientInit         sync.Once
	producerInit            sync.Once
	consumerInit            sync.Once
	outboxRepoInit          sync.Once
	outboxUseCaseInit       sync.Once
	publisherUseCaseInit    sync.Once
	outboxHandlerInit       sync.Once
	subscriptionRepoInit    sync.Once
	subscriptionUseCaseInit sync.Once
	deliveryUseCaseInit     sync.Once
	subscriptionHandlerInit sync.Once
	eventRouterInit         sync.Once
	httpServerInit          sync.Once
	metricsServerInit       sync.Once
	supervisorInit          sync.Once
	initErrors              map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			err = fmt.Errorf("failed to create metrics provider: %w", err)
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the API server with every route registered. The rate
// limiter started by the first call stops when ctx is canceled.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer(ctx)
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Supervisor returns the supervisor running the long-lived loops.
func (c *Container) Supervisor() *supervisor.Supervisor {
	c.supervisorInit.Do(func() {
		c.supervisor = supervisor.New(c.config.SupervisorMaxBackoff, c.Logger())
	})
	return c.supervisor
}

// Shutdown performs cleanup of all initialized resources in reverse dependency order.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close: %w", err))
		}
	}

	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close: %w", err))
		}
	}

	if c.memoryBroker != nil {
		if err := c.memoryBroker.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("memory broker close: %w", err))
		}
	}

	if c.amqpConn != nil {
		if err := c.amqpConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp connection close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(errs...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB connects to the database, retrying the first ping for DBConnectTimeout.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		ConnectTimeout:     c.config.DBConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initBusinessMetrics creates business metrics on the shared meter provider.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server and registers all routes.
func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	outboxHandler, err := c.OutboxHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox handler for http server: %w", err)
	}

	subscriptionHandler, err := c.SubscriptionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription handler for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(
		ctx,
		c.config,
		outboxHandler,
		subscriptionHandler,
		provider,
		c.config.MetricsNamespace,
	)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
