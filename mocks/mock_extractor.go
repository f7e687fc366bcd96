package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResponse), args.Error(1)
}
