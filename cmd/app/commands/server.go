package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/eventbus/internal/app"
	"github.com/allisson/eventbus/internal/config"
	"github.com/allisson/eventbus/internal/supervisor"
)

// shutdownTimeout bounds the graceful shutdown of each server.
const shutdownTimeout = 30 * time.Second

var errServerStopped = errors.New("server stopped unexpectedly")

// RunServer starts the API server, the metrics server, the outbox publisher and
// the broker consumer under one supervisor. Blocks until SIGINT or SIGTERM.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))
	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	tasks := []supervisor.Task{serveTask("api-server", server.Start, server.Shutdown)}
	if metricsServer != nil {
		tasks = append(tasks, serveTask("metrics-server", metricsServer.Start, metricsServer.Shutdown))
	}

	if cfg.PublisherEnabled {
		task, err := publisherTask(container)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	if cfg.ConsumerEnabled {
		task, err := consumerTask(container)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	container.Supervisor().Run(ctx, tasks...)
	logger.Info("server stopped")
	return nil
}

// RunPublisher runs only the outbox publisher until SIGINT or SIGTERM.
func RunPublisher(ctx context.Context) error {
	return runWorker(ctx, "publisher", publisherTask)
}

// RunConsumer runs only the broker consumer and event router until SIGINT or SIGTERM.
func RunConsumer(ctx context.Context) error {
	return runWorker(ctx, "consumer", consumerTask)
}

func runWorker(
	ctx context.Context,
	name string,
	build func(container *app.Container) (supervisor.Task, error),
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("worker", name))
	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	task, err := build(container)
	if err != nil {
		return err
	}

	container.Supervisor().Run(ctx, task)
	logger.Info("worker stopped", slog.String("worker", name))
	return nil
}

func publisherTask(container *app.Container) (supervisor.Task, error) {
	publisher, err := container.PublisherUseCase()
	if err != nil {
		return supervisor.Task{}, fmt.Errorf("failed to initialize outbox publisher: %w", err)
	}
	return supervisor.Task{Name: "outbox-publisher", Run: publisher.Start}, nil
}

func consumerTask(container *app.Container) (supervisor.Task, error) {
	consumer, err := container.Consumer()
	if err != nil {
		return supervisor.Task{}, fmt.Errorf("failed to initialize broker consumer: %w", err)
	}

	eventRouter, err := container.Router()
	if err != nil {
		return supervisor.Task{}, fmt.Errorf("failed to initialize event router: %w", err)
	}

	topics := container.ConsumedTopics()
	return supervisor.Task{
		Name: "broker-consumer",
		Run: func(ctx context.Context) error {
			return consumer.Subscribe(ctx, topics, eventRouter.Route)
		},
	}, nil
}

// serveTask adapts a blocking server to a supervised task that shuts the
// server down once ctx is canceled.
func serveTask(name string, start, shutdown func(ctx context.Context) error) supervisor.Task {
	return supervisor.Task{
		Name: name,
		Run: func(ctx context.Context) error {
			return serveUntilDone(ctx, start, shutdown, shutdownTimeout)
		},
	}
}

func serveUntilDone(
	ctx context.Context,
	start, shutdown func(ctx context.Context) error,
	timeout time.Duration,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return errServerStopped
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}
