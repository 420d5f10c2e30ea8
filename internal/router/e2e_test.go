package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventbus/internal/broker"
	"github.com/allisson/eventbus/internal/broker/memory"
	databaseMocks "github.com/allisson/eventbus/internal/database/mocks"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
	outboxUseCase "github.com/allisson/eventbus/internal/outbox/usecase"
	outboxMocks "github.com/allisson/eventbus/internal/outbox/usecase/mocks"
	"github.com/allisson/eventbus/internal/router"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
	subscriptionUseCase "github.com/allisson/eventbus/internal/subscription/usecase"
	subscriptionMocks "github.com/allisson/eventbus/internal/subscription/usecase/mocks"
	"github.com/allisson/eventbus/internal/supervisor"
)

// TestOutboxToWebhook appends an event, relays it through the in-memory
// broker and checks that the subscribed webhook receives it.
func TestOutboxToWebhook(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	received := make(chan broker.Envelope, 1)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UserRegistered", r.Header.Get("X-Event-Type"))
		assert.Equal(t, "req-1", r.Header.Get("X-Correlation-Id"))

		body, err := io.ReadAll(r.Body)
		if assert.NoError(t, err) {
			env, err := broker.Decode(body)
			if assert.NoError(t, err) {
				received <- env
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	sub := &subscriptionDomain.EventSubscription{
		ID:             uuid.Must(uuid.NewV7()),
		ServiceName:    "mailer",
		EventType:      "UserRegistered",
		WebhookURL:     webhook.URL,
		IsActive:       true,
		RetryCount:     1,
		TimeoutSeconds: 5,
	}

	txManager := databaseMocks.NewMockTxManager(t)
	txManager.RunInTx().Twice()

	outboxRepo := outboxMocks.NewMockOutboxEventRepository(t)
	var appended *outboxDomain.OutboxEvent
	outboxRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.OutboxEvent")).
		Run(func(args mock.Arguments) { appended = args.Get(1).(*outboxDomain.OutboxEvent) }).
		Return(nil).
		Once()

	subRepo := subscriptionMocks.NewMockSubscriptionRepository(t)
	subRepo.On("GetByEventType", mock.Anything, "UserRegistered").
		Return([]*subscriptionDomain.EventSubscription{sub}, nil).
		Once()
	subRepo.On("RecordDeliverySuccess", mock.Anything, sub.ID, mock.AnythingOfType("time.Time")).
		Return(nil).
		Once()

	memBroker := memory.New(time.Minute)
	defer func() { _ = memBroker.Close(context.Background()) }()

	outbox := outboxUseCase.NewOutboxUseCase(
		txManager,
		outboxRepo,
		outboxDomain.NewTopicResolver(map[string]string{"UserRegistered": "user-events"}, "platform-events", nil),
		5,
	)
	publisher := outboxUseCase.NewPublisherUseCase(
		outboxUseCase.PublisherConfig{PollInterval: time.Second, BatchSize: 10, MaxAttempts: 5},
		txManager,
		outboxRepo,
		memBroker.Producer(),
		nil,
		logger,
	)
	delivery := subscriptionUseCase.NewDeliveryUseCase(subscriptionUseCase.DeliveryConfig{}, subRepo, nil, logger)
	eventRouter := router.New(subRepo, delivery, 4, nil, logger)

	consumer := memBroker.Consumer("eventbus", []string{"user-events"}, 50*time.Millisecond, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Subscribe(ctx, []string{"user-events"}, eventRouter.Route)
	}()

	event, err := outbox.AppendEvent(context.Background(), outboxUseCase.AppendEventInput{
		EventType:     "UserRegistered",
		EventData:     json.RawMessage(`{"id":"user-42","email":"jane@example.com"}`),
		CorrelationID: "req-1",
	})
	require.NoError(t, err)
	require.Same(t, appended, event)
	assert.Equal(t, "user-events", event.Topic)
	require.NotNil(t, event.PartitionKey)
	assert.Equal(t, "user-42", *event.PartitionKey)

	outboxRepo.On("GetUnpublished", mock.Anything, 10, 5).
		Return([]*outboxDomain.OutboxEvent{event}, nil).
		Once()
	outboxRepo.On("MarkAsPublished", mock.Anything, event.ID, mock.AnythingOfType("time.Time")).
		Return(nil).
		Once()

	result, err := publisher.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outboxUseCase.BatchResult{Claimed: 1, Published: 1}, result)

	select {
	case env := <-received:
		assert.Equal(t, event.ID.String(), env.EventID)
		assert.Equal(t, "UserRegistered", env.EventType)
		assert.Equal(t, "req-1", env.CorrelationID)
		assert.JSONEq(t, event.EventPayload, string(env.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("webhook did not receive the event")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

// flakyFinder fails the first subscription lookup, as when the database
// connection drops, and succeeds afterwards.
type flakyFinder struct {
	calls atomic.Int32
	subs  []*subscriptionDomain.EventSubscription
}

func (f *flakyFinder) GetByEventType(context.Context, string) ([]*subscriptionDomain.EventSubscription, error) {
	if f.calls.Add(1) == 1 {
		return nil, errors.New("driver: bad connection")
	}
	return f.subs, nil
}

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []string
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ *subscriptionDomain.EventSubscription, env broker.Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, env.EventID)
	return nil
}

func (d *recordingDeliverer) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.delivered...)
}

// TestSubscriptionLookupFailureRedeliversEvent checks that a consumed event
// whose subscriptions cannot be loaded is delivered after the supervised
// consumer restarts.
func TestSubscriptionLookupFailureRedeliversEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	memBroker := memory.New(time.Minute)
	t.Cleanup(func() { _ = memBroker.Close(context.Background()) })

	finder := &flakyFinder{subs: []*subscriptionDomain.EventSubscription{{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: "UserRegistered",
		IsActive:  true,
	}}}
	deliverer := &recordingDeliverer{}
	eventRouter := router.New(finder, deliverer, 1, nil, logger)

	consumer := memBroker.Consumer("eventbus", []string{"user-events"}, 20*time.Millisecond, logger)
	eventID := uuid.Must(uuid.NewV7()).String()
	require.NoError(t, memBroker.Producer().Publish(context.Background(), "user-events", "u1", broker.Envelope{
		EventID:    eventID,
		EventType:  "UserRegistered",
		OccurredAt: time.Now().UTC(),
		Payload:    json.RawMessage(`{"id":"u1"}`),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		supervisor.New(50*time.Millisecond, logger).Run(ctx, supervisor.Task{
			Name: "consumer",
			Run: func(ctx context.Context) error {
				return consumer.Subscribe(ctx, []string{"user-events"}, eventRouter.Route)
			},
		})
	}()

	require.Eventually(t, func() bool {
		return len(deliverer.ids()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	assert.Equal(t, []string{eventID}, deliverer.ids())
	assert.Equal(t, int32(2), finder.calls.Load())
}
