// Package supervisor runs long-lived loops and restarts them when they fail.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Task is a named long-running loop. Run must return when ctx is canceled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor restarts tasks that return or panic before their context is
// canceled, waiting with exponential backoff between restarts.
type Supervisor struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a Supervisor whose restart delay grows up to maxBackoff.
func New(maxBackoff time.Duration, logger *slog.Logger) *Supervisor {
	initial := 500 * time.Millisecond
	if maxBackoff < initial {
		initial = maxBackoff
	}
	return &Supervisor{
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
		logger:         logger,
	}
}

// Run supervises every task concurrently and blocks until ctx is canceled
// and all tasks have returned.
func (s *Supervisor) Run(ctx context.Context, tasks ...Task) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Go(func() {
			s.supervise(ctx, task)
		})
	}
	wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, task Task) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialBackoff
	policy.MaxInterval = s.maxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	logger := s.logger.With(slog.String("task", task.Name))

	for restarts := 0; ; restarts++ {
		logger.Info("starting supervised task", slog.Int("restarts", restarts))

		started := time.Now()
		err := runSafely(ctx, task.Run)
		if ctx.Err() != nil {
			logger.Info("supervised task stopped")
			return
		}

		// A task that stayed up longer than the backoff ceiling starts over from the initial delay.
		if time.Since(started) > s.maxBackoff {
			policy.Reset()
		}
		delay := policy.NextBackOff()

		logger.Error("supervised task exited unexpectedly",
			slog.Any("error", err),
			slog.Duration("restart_in", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("supervised task stopped")
			return
		case <-timer.C:
		}
	}
}

// runSafely converts a panic in run into an error.
func runSafely(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	if err := run(ctx); err != nil {
		return err
	}
	return fmt.Errorf("returned before shutdown")
}
