package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockCaseRepo is a mock implementation of port.CaseRepository.
type MockCaseRepo struct {
	mock.Mock
}

func (m *MockCaseRepo) Create(ctx context.Context, c *domain.Case) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseRepo) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}
