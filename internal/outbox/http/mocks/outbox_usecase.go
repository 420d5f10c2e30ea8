// Package mocks provides testify mocks for the outbox use cases consumed by the HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockOutboxUseCase is a mock implementation of usecase.OutboxUseCase.
type MockOutboxUseCase struct {
	mock.Mock
}

// NewMockOutboxUseCase creates a mock that asserts its expectations on test cleanup.
func NewMockOutboxUseCase(t testingT) *MockOutboxUseCase {
	m := &MockOutboxUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOutboxUseCase) AppendEvent(
	ctx context.Context,
	input outboxUsecase.AppendEventInput,
) (*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, input)
	event, _ := args.Get(0).(*outboxDomain.OutboxEvent)
	return event, args.Error(1)
}

func (m *MockOutboxUseCase) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*outboxDomain.OutboxEvent)
	return event, args.Error(1)
}

func (m *MockOutboxUseCase) ListDeadLettered(
	ctx context.Context,
	offset, limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, offset, limit)
	events, _ := args.Get(0).([]*outboxDomain.OutboxEvent)
	return events, args.Error(1)
}

func (m *MockOutboxUseCase) Requeue(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxUseCase) PurgePublished(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

var _ outboxUsecase.OutboxUseCase = (*MockOutboxUseCase)(nil)
