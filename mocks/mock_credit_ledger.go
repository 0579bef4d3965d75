package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"clinsight/internal/domain"
)

// MockCreditLedger is a mock implementation of port.CreditLedger.
type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) EnsureAccount(ctx context.Context, userID string, startingGrant int) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID, startingGrant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

func (m *MockCreditLedger) GetAccount(ctx context.Context, userID string) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

func (m *MockCreditLedger) Reserve(ctx context.Context, userID string) (*domain.Reservation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCreditLedger) Commit(ctx context.Context, reservationID uuid.UUID, record *domain.AnalysisRecord) error {
	args := m.Called(ctx, reservationID, record)
	return args.Error(0)
}

func (m *MockCreditLedger) Release(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockCreditLedger) MarkPersisted(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockCreditLedger) ListCommitted(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockCreditLedger) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockCreditLedger) Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

func (m *MockCreditLedger) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	args := m.Called(ctx, userID, isAdmin)
	return args.Error(0)
}
