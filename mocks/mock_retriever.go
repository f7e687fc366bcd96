package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// MockRetriever is a mock implementation of port.Retriever.
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, in port.RetrieveInput) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}
