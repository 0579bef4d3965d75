package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"clinsight/internal/domain"
)

// MockAnalysisRepo is a mock implementation of port.AnalysisRepository.
type MockAnalysisRepo struct {
	mock.Mock
}

func (m *MockAnalysisRepo) Create(ctx context.Context, record *domain.AnalysisRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAnalysisRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisRecord), args.Error(1)
}

func (m *MockAnalysisRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnalysisRecord), args.Error(1)
}

func (m *MockAnalysisRepo) Delete(ctx context.Context, id uuid.UUID, requestingUserID string) error {
	args := m.Called(ctx, id, requestingUserID)
	return args.Error(0)
}
