package app

import (
	"fmt"

	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
	outboxHTTP "github.com/allisson/eventbus/internal/outbox/http"
	outboxRepository "github.com/allisson/eventbus/internal/outbox/repository"
	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
)

// TopicResolver returns the resolver mapping event types to broker topics.
func (c *Container) TopicResolver() *outboxDomain.TopicResolver {
	return outboxDomain.NewTopicResolver(c.config.EventTopicMap, c.config.EventDefaultTopic, c.config.BrokerTopics)
}

// ConsumedTopics returns every topic the outbox can route an event to, which is
// the set the consumer loop subscribes to.
func (c *Container) ConsumedTopics() []string {
	return c.TopicResolver().Topics()
}

// OutboxRepository returns the outbox event repository for the configured driver.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxUseCase returns the outbox use case.
func (c *Container) OutboxUseCase() (outboxUsecase.OutboxUseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

// PublisherUseCase returns the outbox publisher relaying events to the broker.
func (c *Container) PublisherUseCase() (outboxUsecase.PublisherUseCase, error) {
	var err error
	c.publisherUseCaseInit.Do(func() {
		c.publisherUseCase, err = c.initPublisherUseCase()
		if err != nil {
			c.initErrors["publisherUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publisherUseCase"]; exists {
		return nil, storedErr
	}
	return c.publisherUseCase, nil
}

// OutboxHandler returns the HTTP handler for event ingestion and dead-letter operations.
func (c *Container) OutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	var err error
	c.outboxHandlerInit.Do(func() {
		var useCase outboxUsecase.OutboxUseCase
		useCase, err = c.OutboxUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get outbox use case for outbox handler: %w", err)
			c.initErrors["outboxHandler"] = err
			return
		}
		c.outboxHandler = outboxHTTP.NewOutboxHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxHandler"]; exists {
		return nil, storedErr
	}
	return c.outboxHandler, nil
}

func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOutboxUseCase() (outboxUsecase.OutboxUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	resolver := c.TopicResolver()
	baseUseCase := outboxUsecase.NewOutboxUseCase(
		txManager,
		outboxRepo,
		resolver,
		c.config.OutboxMaxPublishAttempts,
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for outbox use case: %w", err)
		}
		return outboxUsecase.NewOutboxUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initPublisherUseCase() (outboxUsecase.PublisherUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for publisher: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for publisher: %w", err)
	}

	producer, err := c.Producer()
	if err != nil {
		return nil, fmt.Errorf("failed to get producer for publisher: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for publisher: %w", err)
	}

	return outboxUsecase.NewPublisherUseCase(
		outboxUsecase.PublisherConfig{
			PollInterval: c.config.OutboxPollInterval,
			BatchSize:    c.config.OutboxBatchSize,
			MaxAttempts:  c.config.OutboxMaxPublishAttempts,
		},
		txManager,
		outboxRepo,
		producer,
		businessMetrics,
		c.Logger(),
	), nil
}
