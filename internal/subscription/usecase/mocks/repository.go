// Package mocks provides testify mocks for the subscription repository interface.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSubscriptionRepository is a mock implementation of usecase.SubscriptionRepository.
type MockSubscriptionRepository struct {
	mock.Mock
}

// NewMockSubscriptionRepository creates a mock that asserts its expectations on test cleanup.
func NewMockSubscriptionRepository(t testingT) *MockSubscriptionRepository {
	m := &MockSubscriptionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, sub *subscriptionDomain.EventSubscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockSubscriptionRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*subscriptionDomain.EventSubscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptionRepository) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, eventType)
	subs, _ := args.Get(0).([]*subscriptionDomain.EventSubscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptionRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, offset, limit)
	subs, _ := args.Get(0).([]*subscriptionDomain.EventSubscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSubscriptionRepository) RecordDeliverySuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSubscriptionRepository) RecordDeliveryFailure(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
	reason string,
) error {
	return m.Called(ctx, id, at, reason).Error(0)
}
