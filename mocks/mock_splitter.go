package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockSplitter is a mock implementation of port.Splitter.
type MockSplitter struct {
	mock.Mock
}

func (m *MockSplitter) Split(ctx context.Context, req domain.SplitRequest) (*domain.SplitClassifyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SplitClassifyResult), args.Error(1)
}
