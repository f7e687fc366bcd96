package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) UpdateSubDocuments(ctx context.Context, docID string, subs domain.SubDocumentList, meta *domain.SplitMeta) error {
	args := m.Called(ctx, docID, subs, meta)
	return args.Error(0)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, docID, status string) error {
	args := m.Called(ctx, docID, status)
	return args.Error(0)
}
