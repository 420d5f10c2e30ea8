package app

import (
	"fmt"

	subscriptionHTTP "github.com/allisson/eventbus/internal/subscription/http"
	subscriptionRepository "github.com/allisson/eventbus/internal/subscription/repository"
	subscriptionUsecase "github.com/allisson/eventbus/internal/subscription/usecase"
)

// SubscriptionRepository returns the subscription repository for the configured driver.
func (c *Container) SubscriptionRepository() (subscriptionUsecase.SubscriptionRepository, error) {
	var err error
	c.subscriptionRepoInit.Do(func() {
		c.subscriptionRepo, err = c.initSubscriptionRepository()
		if err != nil {
			c.initErrors["subscriptionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["subscriptionRepo"]; exists {
		return nil, storedErr
	}
	return c.subscriptionRepo, nil
}

// SubscriptionUseCase returns the subscription registry use case.
func (c *Container) SubscriptionUseCase() (subscriptionUsecase.SubscriptionUseCase, error) {
	var err error
	c.subscriptionUseCaseInit.Do(func() {
		c.subscriptionUseCase, err = c.initSubscriptionUseCase()
		if err != nil {
			c.initErrors["subscriptionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["subscriptionUseCase"]; exists {
		return nil, storedErr
	}
	return c.subscriptionUseCase, nil
}

// DeliveryUseCase returns the webhook dispatcher.
func (c *Container) DeliveryUseCase() (subscriptionUsecase.DeliveryUseCase, error) {
	var err error
	c.deliveryUseCaseInit.Do(func() {
		c.deliveryUseCase, err = c.initDeliveryUseCase()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.deliveryUseCase, nil
}

// SubscriptionHandler returns the HTTP handler for subscription management.
func (c *Container) SubscriptionHandler() (*subscriptionHTTP.SubscriptionHandler, error) {
	var err error
	c.subscriptionHandlerInit.Do(func() {
		var useCase subscriptionUsecase.SubscriptionUseCase
		useCase, err = c.SubscriptionUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get subscription use case for subscription handler: %w", err)
			c.initErrors["subscriptionHandler"] = err
			return
		}
		c.subscriptionHandler = subscriptionHTTP.NewSubscriptionHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["subscriptionHandler"]; exists {
		return nil, storedErr
	}
	return c.subscriptionHandler, nil
}

func (c *Container) initSubscriptionRepository() (subscriptionUsecase.SubscriptionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for subscription repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return subscriptionRepository.NewMySQLSubscriptionRepository(db), nil
	case "postgres":
		return subscriptionRepository.NewPostgreSQLSubscriptionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSubscriptionUseCase() (subscriptionUsecase.SubscriptionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for subscription use case: %w", err)
	}

	subscriptionRepo, err := c.SubscriptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription repository for subscription use case: %w", err)
	}

	baseUseCase := subscriptionUsecase.NewSubscriptionUseCase(txManager, subscriptionRepo)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for subscription use case: %w", err)
		}
		return subscriptionUsecase.NewSubscriptionUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initDeliveryUseCase() (subscriptionUsecase.DeliveryUseCase, error) {
	subscriptionRepo, err := c.SubscriptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription repository for delivery use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for delivery use case: %w", err)
	}

	return subscriptionUsecase.NewDeliveryUseCase(
		subscriptionUsecase.DeliveryConfig{
			RetryWaitMin: c.config.WebhookRetryWaitMin,
			RetryWaitMax: c.config.WebhookRetryWaitMax,
		},
		subscriptionRepo,
		businessMetrics,
		c.Logger(),
	), nil
}
