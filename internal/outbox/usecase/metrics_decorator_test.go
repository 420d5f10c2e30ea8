package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventbus/internal/metrics"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

// stubOutboxUseCase returns canned results for every OutboxUseCase method.
type stubOutboxUseCase struct {
	event *outboxDomain.OutboxEvent
	err   error
}

func (s *stubOutboxUseCase) AppendEvent(context.Context, AppendEventInput) (*outboxDomain.OutboxEvent, error) {
	return s.event, s.err
}

func (s *stubOutboxUseCase) Get(context.Context, uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	return s.event, s.err
}

func (s *stubOutboxUseCase) ListDeadLettered(context.Context, int, int) ([]*outboxDomain.OutboxEvent, error) {
	return nil, s.err
}

func (s *stubOutboxUseCase) Requeue(context.Context, uuid.UUID) error {
	return s.err
}

func (s *stubOutboxUseCase) PurgePublished(context.Context, time.Time, bool) (int64, error) {
	return 0, s.err
}

func TestMetricsDecorator_AppendEvent(t *testing.T) {
	ctx := context.Background()
	input := AppendEventInput{EventType: "UserRegistered", EventData: json.RawMessage(`{}`)}

	t.Run("Success_RecordsSuccessMetrics", func(t *testing.T) {
		mockMetrics := &mockBusinessMetrics{}
		event := &outboxDomain.OutboxEvent{ID: uuid.Must(uuid.NewV7())}
		decorator := NewOutboxUseCaseWithMetrics(&stubOutboxUseCase{event: event}, mockMetrics)

		mockMetrics.On("RecordOperation", ctx, "outbox", "event_append", "success").Once()
		mockMetrics.On("RecordDuration", ctx, "outbox", "event_append", mock.AnythingOfType("time.Duration"), "success").
			Once()

		got, err := decorator.AppendEvent(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, event, got)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Error_RecordsErrorMetrics", func(t *testing.T) {
		mockMetrics := &mockBusinessMetrics{}
		decorator := NewOutboxUseCaseWithMetrics(&stubOutboxUseCase{err: errors.New("boom")}, mockMetrics)

		mockMetrics.On("RecordOperation", ctx, "outbox", "event_append", "error").Once()
		mockMetrics.On("RecordDuration", ctx, "outbox", "event_append", mock.AnythingOfType("time.Duration"), "error").
			Once()

		_, err := decorator.AppendEvent(ctx, input)
		assert.Error(t, err)
		mockMetrics.AssertExpectations(t)
	})
}

func TestMetricsDecorator_OperatorActions(t *testing.T) {
	ctx := context.Background()
	mockMetrics := &mockBusinessMetrics{}
	decorator := NewOutboxUseCaseWithMetrics(&stubOutboxUseCase{}, mockMetrics)

	for _, operation := range []string{"event_get", "event_list_dead_letter", "event_requeue", "event_purge"} {
		mockMetrics.On("RecordOperation", ctx, "outbox", operation, "success").Once()
		mockMetrics.On("RecordDuration", ctx, "outbox", operation, mock.AnythingOfType("time.Duration"), "success").
			Once()
	}

	_, _ = decorator.Get(ctx, uuid.New())
	_, _ = decorator.ListDeadLettered(ctx, 0, 10)
	_ = decorator.Requeue(ctx, uuid.New())
	_, _ = decorator.PurgePublished(ctx, time.Now(), true)

	mockMetrics.AssertExpectations(t)
}
