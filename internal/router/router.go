// Package router dispatches consumed events to local handlers and webhook subscriptions.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/eventbus/internal/broker"
	"github.com/allisson/eventbus/internal/metrics"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

// ErrDuplicateHandler is returned when a local handler is already registered for an event type.
var ErrDuplicateHandler = errors.New("handler already registered for event type")

// SubscriptionFinder returns the active subscriptions for an event type.
type SubscriptionFinder interface {
	GetByEventType(ctx context.Context, eventType string) ([]*subscriptionDomain.EventSubscription, error)
}

// Deliverer delivers an envelope to one subscription webhook.
type Deliverer interface {
	Deliver(ctx context.Context, sub *subscriptionDomain.EventSubscription, env broker.Envelope) error
}

// Router maps event types to at most one local handler and fans out to
// every active webhook subscription.
type Router struct {
	mu            sync.RWMutex
	handlers      map[string]broker.Handler
	subscriptions SubscriptionFinder
	deliverer     Deliverer
	maxConcurrent int
	metrics       metrics.BusinessMetrics
	logger        *slog.Logger
}

// New creates a Router. maxConcurrent bounds concurrent webhook deliveries
// per routed event; values below one deliver sequentially.
func New(
	subscriptions SubscriptionFinder,
	deliverer Deliverer,
	maxConcurrent int,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Router {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Router{
		handlers:      make(map[string]broker.Handler),
		subscriptions: subscriptions,
		deliverer:     deliverer,
		maxConcurrent: maxConcurrent,
		metrics:       businessMetrics,
		logger:        logger,
	}
}

// Register adds the local handler for eventType.
func (r *Router) Register(eventType string, handler broker.Handler) error {
	if eventType == "" || handler == nil {
		return errors.New("event type and handler are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[eventType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, eventType)
	}
	r.handlers[eventType] = handler
	return nil
}

// Route runs the local handler for env, if any, then delivers env to every
// active subscription. Webhook failures are recorded on the subscription and
// never returned. Local handler errors are returned as is. A failed
// subscription lookup is returned as a *broker.RedeliveryError so the message
// is consumed again instead of losing its webhook deliveries.
func (r *Router) Route(ctx context.Context, env broker.Envelope) error {
	start := time.Now()

	r.mu.RLock()
	handler := r.handlers[env.EventType]
	r.mu.RUnlock()

	var handlerErr error
	if handler != nil {
		if err := handler(ctx, env); err != nil {
			handlerErr = fmt.Errorf("local handler for %s: %w", env.EventType, err)
		}
	}

	delivered, lookupErr := r.fanOut(ctx, env)

	err := errors.Join(handlerErr, lookupErr)
	status := metrics.StatusOf(err)
	r.metrics.RecordOperation(ctx, metrics.DomainRouter, "event_route", status)
	r.metrics.RecordDuration(ctx, metrics.DomainRouter, "event_route", time.Since(start), status)

	r.logger.Debug("event routed",
		slog.String("event_id", env.EventID),
		slog.String("event_type", env.EventType),
		slog.Bool("local_handler", handler != nil),
		slog.Int("webhooks", delivered),
	)

	return err
}

// fanOut delivers env to every active subscription and returns how many were attempted.
func (r *Router) fanOut(ctx context.Context, env broker.Envelope) (int, error) {
	if r.subscriptions == nil || r.deliverer == nil {
		return 0, nil
	}

	subs, err := r.subscriptions.GetByEventType(ctx, env.EventType)
	if err != nil {
		return 0, &broker.RedeliveryError{
			Err: fmt.Errorf("failed to load subscriptions for %s: %w", env.EventType, err),
		}
	}

	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for _, sub := range subs {
		g.Go(func() error {
			// The deliverer records the outcome on the subscription.
			_ = r.deliverer.Deliver(ctx, sub, env)
			return nil
		})
	}
	_ = g.Wait()

	return len(subs), nil
}
