package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockPageRepo is a mock implementation of port.PageRepository.
type MockPageRepo struct {
	mock.Mock
}

func (m *MockPageRepo) CreateBatch(ctx context.Context, pages []domain.DocumentPage) error {
	args := m.Called(ctx, pages)
	return args.Error(0)
}

func (m *MockPageRepo) ListByDocument(ctx context.Context, docID string) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}

func (m *MockPageRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}

func (m *MockPageRepo) SearchFullText(ctx context.Context, docIDs []string, query string, limit int) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, docIDs, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}
