// Package mocks provides testify mocks for the subscription use cases.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/eventbus/internal/broker"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
	subscriptionUsecase "github.com/allisson/eventbus/internal/subscription/usecase"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSubscriptionUseCase is a mock implementation of usecase.SubscriptionUseCase.
type MockSubscriptionUseCase struct {
	mock.Mock
}

var _ subscriptionUsecase.SubscriptionUseCase = (*MockSubscriptionUseCase)(nil)

// NewMockSubscriptionUseCase creates a mock that asserts its expectations on test cleanup.
func NewMockSubscriptionUseCase(t testingT) *MockSubscriptionUseCase {
	m := &MockSubscriptionUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSubscriptionUseCase) Subscribe(
	ctx context.Context,
	input subscriptionUsecase.SubscribeInput,
) (*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, input)
	sub, _ := args.Get(0).(*subscriptionDomain.EventSubscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptionUseCase) Get(
	ctx context.Context,
	id uuid.UUID,
) (*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*subscriptionDomain.EventSubscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptionUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, offset, limit)
	subs, _ := args.Get(0).([]*subscriptionDomain.EventSubscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptionUseCase) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	args := m.Called(ctx, eventType)
	subs, _ := args.Get(0).([]*subscriptionDomain.EventSubscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptionUseCase) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSubscriptionUseCase) UpdateDeliveryStatus(
	ctx context.Context,
	id uuid.UUID,
	success bool,
	failureReason string,
) error {
	return m.Called(ctx, id, success, failureReason).Error(0)
}

// MockDeliveryUseCase is a mock implementation of usecase.DeliveryUseCase.
type MockDeliveryUseCase struct {
	mock.Mock
}

var _ subscriptionUsecase.DeliveryUseCase = (*MockDeliveryUseCase)(nil)

// NewMockDeliveryUseCase creates a mock that asserts its expectations on test cleanup.
func NewMockDeliveryUseCase(t testingT) *MockDeliveryUseCase {
	m := &MockDeliveryUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDeliveryUseCase) Deliver(
	ctx context.Context,
	sub *subscriptionDomain.EventSubscription,
	env broker.Envelope,
) error {
	return m.Called(ctx, sub, env).Error(0)
}
