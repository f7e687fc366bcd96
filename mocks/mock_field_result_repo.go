package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockFieldResultRepo is a mock implementation of port.FieldResultRepository.
type MockFieldResultRepo struct {
	mock.Mock
}

func (m *MockFieldResultRepo) Upsert(ctx context.Context, rec *domain.FieldResultRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockFieldResultRepo) UpsertBatch(ctx context.Context, recs []domain.FieldResultRecord) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

func (m *MockFieldResultRepo) Get(ctx context.Context, documentID, subdocumentID, fieldName string) (*domain.FieldResultRecord, error) {
	args := m.Called(ctx, documentID, subdocumentID, fieldName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FieldResultRecord), args.Error(1)
}

func (m *MockFieldResultRepo) ListByDocument(ctx context.Context, documentID, subdocumentID string) ([]domain.FieldResultRecord, error) {
	args := m.Called(ctx, documentID, subdocumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FieldResultRecord), args.Error(1)
}
