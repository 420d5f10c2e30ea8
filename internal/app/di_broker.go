package app

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/eventbus/internal/broker"
	kafkaBroker "github.com/allisson/eventbus/internal/broker/kafka"
	"github.com/allisson/eventbus/internal/broker/memory"
	rabbitBroker "github.com/allisson/eventbus/internal/broker/rabbitmq"
	"github.com/allisson/eventbus/internal/router"
)

const (
	// memoryAckDeadline is how long the in-memory broker waits before redelivering an unacked message.
	memoryAckDeadline = time.Minute
	// rabbitPrefetch bounds unacknowledged deliveries per consumer channel.
	rabbitPrefetch = 16
)

// Producer returns the broker producer for BROKER_DRIVER, wrapped in a circuit
// breaker when enabled.
func (c *Container) Producer() (broker.Producer, error) {
	var err error
	c.producerInit.Do(func() {
		c.producer, err = c.initProducer()
		if err != nil {
			c.initErrors["producer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["producer"]; exists {
		return nil, storedErr
	}
	return c.producer, nil
}

// Consumer returns the broker consumer for BROKER_DRIVER.
func (c *Container) Consumer() (broker.Consumer, error) {
	var err error
	c.consumerInit.Do(func() {
		c.consumer, err = c.initConsumer()
		if err != nil {
			c.initErrors["consumer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consumer"]; exists {
		return nil, storedErr
	}
	return c.consumer, nil
}

// AMQPConnection returns the RabbitMQ connection shared by producer and consumer.
// It dials lazily and re-dials after the broker drops it.
func (c *Container) AMQPConnection() *rabbitBroker.Connection {
	c.amqpConnInit.Do(func() {
		c.amqpConn = rabbitBroker.NewConnection(c.config.BrokerURL, c.Logger())
	})
	return c.amqpConn
}

// MemoryBroker returns the in-process broker shared by producer and consumer.
func (c *Container) MemoryBroker() *memory.Broker {
	c.memoryBrokerInit.Do(func() {
		c.memoryBroker = memory.New(memoryAckDeadline)
	})
	return c.memoryBroker
}

// RedisClient returns the Redis client used for cache invalidation, or nil when REDIS_URL is unset.
func (c *Container) RedisClient() (redis.UniversalClient, error) {
	var err error
	c.redisClientInit.Do(func() {
		if c.config.RedisURL == "" {
			return
		}
		var opts *redis.Options
		opts, err = redis.ParseURL(c.config.RedisURL)
		if err != nil {
			err = fmt.Errorf("failed to parse redis url: %w", err)
			c.initErrors["redisClient"] = err
			return
		}
		c.redisClient = redis.NewClient(opts)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redisClient"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// Router returns the event router with its local handlers registered.
func (c *Container) Router() (*router.Router, error) {
	var err error
	c.eventRouterInit.Do(func() {
		c.eventRouter, err = c.initRouter()
		if err != nil {
			c.initErrors["eventRouter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["eventRouter"]; exists {
		return nil, storedErr
	}
	return c.eventRouter, nil
}

func (c *Container) initProducer() (broker.Producer, error) {
	var producer broker.Producer

	switch c.config.BrokerDriver {
	case "kafka":
		writer := kafkaBroker.NewWriter(kafkaBroker.ProducerConfig{
			Brokers:        c.config.BrokerBrokers,
			PublishTimeout: c.config.BrokerPublishTimeout,
		})
		producer = kafkaBroker.NewProducer(writer, c.config.BrokerPublishTimeout)
	case "rabbitmq":
		producer = rabbitBroker.NewProducer(c.AMQPConnection(), c.config.BrokerPublishTimeout)
	case "memory":
		producer = c.MemoryBroker().Producer()
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", c.config.BrokerDriver)
	}

	if !c.config.BrokerBreakerEnabled {
		return producer, nil
	}

	return broker.NewBreakerProducer(producer, broker.BreakerConfig{
		Name:                c.config.BrokerDriver + "-producer",
		ConsecutiveFailures: c.config.BrokerBreakerConsecutiveFailures,
		OpenTimeout:         c.config.BrokerBreakerOpenTimeout,
	}, c.Logger()), nil
}

func (c *Container) initConsumer() (broker.Consumer, error) {
	logger := c.Logger()

	switch c.config.BrokerDriver {
	case "kafka":
		return kafkaBroker.NewConsumer(kafkaBroker.ConsumerConfig{
			Brokers:     c.config.BrokerBrokers,
			GroupID:     c.config.BrokerConsumerGroup,
			PollTimeout: c.config.BrokerPollTimeout,
		}, logger), nil
	case "rabbitmq":
		return rabbitBroker.NewConsumer(c.AMQPConnection(), rabbitBroker.ConsumerConfig{
			Group:    c.config.BrokerConsumerGroup,
			Prefetch: rabbitPrefetch,
		}, logger), nil
	case "memory":
		return c.MemoryBroker().Consumer(
			c.config.BrokerConsumerGroup,
			c.ConsumedTopics(),
			c.config.BrokerPollTimeout,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", c.config.BrokerDriver)
	}
}

func (c *Container) initRouter() (*router.Router, error) {
	logger := c.Logger()

	subscriptionUseCase, err := c.SubscriptionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription use case for router: %w", err)
	}

	deliveryUseCase, err := c.DeliveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery use case for router: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for router: %w", err)
	}

	eventRouter := router.New(
		subscriptionUseCase,
		deliveryUseCase,
		c.config.RouterMaxConcurrentDeliveries,
		businessMetrics,
		logger,
	)

	redisClient, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for router: %w", err)
	}
	if redisClient != nil {
		if err := eventRouter.Register(
			router.CacheInvalidationEventType,
			router.NewCacheInvalidationHandler(redisClient, logger),
		); err != nil {
			return nil, fmt.Errorf("failed to register cache invalidation handler: %w", err)
		}
	}

	return eventRouter, nil
}
