// Package mocks provides testify mocks for the outbox repository interface.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockOutboxEventRepository is a mock implementation of usecase.OutboxEventRepository.
type MockOutboxEventRepository struct {
	mock.Mock
}

// NewMockOutboxEventRepository creates a mock that asserts its expectations on test cleanup.
func NewMockOutboxEventRepository(t testingT) *MockOutboxEventRepository {
	m := &MockOutboxEventRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*outboxDomain.OutboxEvent)
	return event, args.Error(1)
}

func (m *MockOutboxEventRepository) GetUnpublished(
	ctx context.Context,
	batchSize int,
	maxAttempts int,
) ([]*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, batchSize, maxAttempts)
	events, _ := args.Get(0).([]*outboxDomain.OutboxEvent)
	return events, args.Error(1)
}

func (m *MockOutboxEventRepository) MarkAsPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	return m.Called(ctx, id, publishedAt).Error(0)
}

func (m *MockOutboxEventRepository) UpdatePublishAttempt(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

func (m *MockOutboxEventRepository) ExhaustPublishAttempts(
	ctx context.Context,
	id uuid.UUID,
	maxAttempts int,
	errorMessage string,
) error {
	return m.Called(ctx, id, maxAttempts, errorMessage).Error(0)
}

func (m *MockOutboxEventRepository) ListDeadLettered(
	ctx context.Context,
	maxAttempts int,
	offset int,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	args := m.Called(ctx, maxAttempts, offset, limit)
	events, _ := args.Get(0).([]*outboxDomain.OutboxEvent)
	return events, args.Error(1)
}

func (m *MockOutboxEventRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxEventRepository) CountPublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxEventRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
