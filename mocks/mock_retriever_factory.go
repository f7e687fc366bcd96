package mocks

import (
	"github.com/stretchr/testify/mock"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// MockRetrieverFactory is a mock implementation of port.RetrieverFactory.
type MockRetrieverFactory struct {
	mock.Mock
}

func (m *MockRetrieverFactory) Build(cfg domain.RetrieverConfig) (port.Retriever, error) {
	args := m.Called(cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.Retriever), args.Error(1)
}
