package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventbus/internal/broker"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
	subscriptionMocks "github.com/allisson/eventbus/internal/subscription/http/mocks"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnvelope(eventType string) broker.Envelope {
	return broker.Envelope{
		EventID:    uuid.Must(uuid.NewV7()).String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    json.RawMessage(`{"id":"u1"}`),
	}
}

func newTestSubscriptions(n int) []*subscriptionDomain.EventSubscription {
	subs := make([]*subscriptionDomain.EventSubscription, 0, n)
	for range n {
		subs = append(subs, &subscriptionDomain.EventSubscription{
			ID:         uuid.Must(uuid.NewV7()),
			EventType:  "UserRegistered",
			WebhookURL: "https://example.internal/hook",
			IsActive:   true,
		})
	}
	return subs
}

func TestRouter_Register(t *testing.T) {
	r := New(nil, nil, 1, nil, newTestLogger())
	noop := func(context.Context, broker.Envelope) error { return nil }

	require.NoError(t, r.Register("UserRegistered", noop))

	err := r.Register("UserRegistered", noop)
	assert.ErrorIs(t, err, ErrDuplicateHandler)
	assert.Contains(t, err.Error(), "UserRegistered")

	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("InvoicePaid", nil))
}

func TestRouter_Route(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalHandlerAndWebhooks", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		env := newTestEnvelope("UserRegistered")
		subs := newTestSubscriptions(2)

		var handled atomic.Int32
		r := New(finder, deliverer, 4, nil, newTestLogger())
		require.NoError(t, r.Register("UserRegistered", func(_ context.Context, got broker.Envelope) error {
			assert.Equal(t, env.EventID, got.EventID)
			handled.Add(1)
			return nil
		}))

		finder.On("GetByEventType", ctx, "UserRegistered").Return(subs, nil).Once()
		deliverer.On("Deliver", ctx, subs[0], env).Return(nil).Once()
		deliverer.On("Deliver", ctx, subs[1], env).Return(nil).Once()

		require.NoError(t, r.Route(ctx, env))
		assert.Equal(t, int32(1), handled.Load())
	})

	t.Run("NoLocalHandlerNoSubscriptions", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		r := New(finder, deliverer, 4, nil, newTestLogger())

		finder.On("GetByEventType", ctx, "Unknown").Return(nil, nil).Once()

		assert.NoError(t, r.Route(ctx, newTestEnvelope("Unknown")))
	})

	t.Run("WebhookFailuresAreNotReturned", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		env := newTestEnvelope("UserRegistered")
		subs := newTestSubscriptions(2)
		r := New(finder, deliverer, 4, nil, newTestLogger())

		finder.On("GetByEventType", ctx, "UserRegistered").Return(subs, nil).Once()
		deliverer.On("Deliver", ctx, subs[0], env).Return(subscriptionDomain.ErrWebhookDelivery).Once()
		deliverer.On("Deliver", ctx, subs[1], env).Return(nil).Once()

		assert.NoError(t, r.Route(ctx, env))
	})

	t.Run("LocalHandlerErrorStillFansOut", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		env := newTestEnvelope("UserRegistered")
		subs := newTestSubscriptions(1)
		handlerErr := errors.New("projection failed")

		r := New(finder, deliverer, 4, nil, newTestLogger())
		require.NoError(t, r.Register("UserRegistered", func(context.Context, broker.Envelope) error {
			return handlerErr
		}))

		finder.On("GetByEventType", ctx, "UserRegistered").Return(subs, nil).Once()
		deliverer.On("Deliver", ctx, subs[0], env).Return(nil).Once()

		err := r.Route(ctx, env)
		assert.ErrorIs(t, err, handlerErr)
	})

	t.Run("LookupErrorIsReturned", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		dbErr := errors.New("connection reset")
		r := New(finder, deliverer, 4, nil, newTestLogger())

		finder.On("GetByEventType", ctx, "UserRegistered").Return(nil, dbErr).Once()

		err := r.Route(ctx, newTestEnvelope("UserRegistered"))
		assert.ErrorIs(t, err, dbErr)
		assert.True(t, broker.IsRedelivery(err))
	})

	t.Run("LocalHandlerErrorIsNotRedelivered", func(t *testing.T) {
		finder := subscriptionMocks.NewMockSubscriptionUseCase(t)
		deliverer := subscriptionMocks.NewMockDeliveryUseCase(t)
		r := New(finder, deliverer, 4, nil, newTestLogger())
		require.NoError(t, r.Register("UserRegistered", func(context.Context, broker.Envelope) error {
			return errors.New("projection failed")
		}))

		finder.On("GetByEventType", ctx, "UserRegistered").Return(nil, nil).Once()

		err := r.Route(ctx, newTestEnvelope("UserRegistered"))
		require.Error(t, err)
		assert.False(t, broker.IsRedelivery(err))
	})
}

// countingDeliverer tracks the peak number of concurrent deliveries.
type countingDeliverer struct {
	mu      sync.Mutex
	current int
	peak    int
	total   int
}

func (d *countingDeliverer) Deliver(context.Context, *subscriptionDomain.EventSubscription, broker.Envelope) error {
	d.mu.Lock()
	d.current++
	d.total++
	if d.current > d.peak {
		d.peak = d.current
	}
	d.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	d.mu.Lock()
	d.current--
	d.mu.Unlock()
	return nil
}

type staticFinder []*subscriptionDomain.EventSubscription

func (f staticFinder) GetByEventType(context.Context, string) ([]*subscriptionDomain.EventSubscription, error) {
	return f, nil
}

func TestRouter_Route_BoundsConcurrency(t *testing.T) {
	deliverer := &countingDeliverer{}
	r := New(staticFinder(newTestSubscriptions(10)), deliverer, 3, nil, newTestLogger())

	require.NoError(t, r.Route(context.Background(), newTestEnvelope("UserRegistered")))

	assert.Equal(t, 10, deliverer.total)
	assert.LessOrEqual(t, deliverer.peak, 3)
	assert.Greater(t, deliverer.peak, 1)
}
