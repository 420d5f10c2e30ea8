// Package mocks provides testify mocks for the database package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager.
type MockTxManager struct {
	mock.Mock
}

// NewMockTxManager creates a MockTxManager that asserts its expectations on test cleanup.
func NewMockTxManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTxManager {
	m := &MockTxManager{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// WithTx records the call. The configured return value may be an error or a
// func(context.Context, func(context.Context) error) error computing it.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if rf, ok := args.Get(0).(func(context.Context, func(context.Context) error) error); ok {
		return rf(ctx, fn)
	}
	return args.Error(0)
}

// RunInTx expects a WithTx call that runs fn and returns its error.
func (m *MockTxManager) RunInTx() *mock.Call {
	return m.On("WithTx", mock.Anything, mock.AnythingOfType("func(context.Context) error")).
		Return(func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) })
}
