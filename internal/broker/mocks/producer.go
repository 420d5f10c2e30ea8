// Package mocks provides testify mocks for the broker package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/eventbus/internal/broker"
)

// MockProducer is a mock implementation of broker.Producer.
type MockProducer struct {
	mock.Mock
}

// NewMockProducer creates a MockProducer that asserts its expectations on test cleanup.
func NewMockProducer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProducer {
	m := &MockProducer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Publish records the call.
func (m *MockProducer) Publish(ctx context.Context, topic string, partitionKey string, env broker.Envelope) error {
	args := m.Called(ctx, topic, partitionKey, env)
	return args.Error(0)
}

// Close records the call.
func (m *MockProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ broker.Producer = (*MockProducer)(nil)
