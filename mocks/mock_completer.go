package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/port"
)

// MockCompleter is a mock implementation of port.Completer.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, in port.CompletionInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}
