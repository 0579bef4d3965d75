package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"clinsight/internal/domain"
	"clinsight/internal/service"
)

// MockAnalysisService is a mock implementation of service.AnalysisService.
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisResult), args.Error(1)
}

func (m *MockAnalysisService) Precheck(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAnalysisService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockHistoryService is a mock implementation of service.HistoryService.
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.AnalysisRecord, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisRecord), args.Error(1)
}

func (m *MockHistoryService) List(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnalysisRecord), args.Error(1)
}

func (m *MockHistoryService) Search(ctx context.Context, userID, term string, limit int) ([]domain.AnalysisRecord, error) {
	args := m.Called(ctx, userID, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnalysisRecord), args.Error(1)
}

func (m *MockHistoryService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockHistoryService) ImageURL(ctx context.Context, userID string, id uuid.UUID, index int) (string, error) {
	args := m.Called(ctx, userID, id, index)
	return args.String(0), args.Error(1)
}

// MockCreditsService is a mock implementation of service.CreditsService.
type MockCreditsService struct {
	mock.Mock
}

func (m *MockCreditsService) GetBalance(ctx context.Context, userID string) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

func (m *MockCreditsService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditsService) Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

func (m *MockCreditsService) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*domain.UserCredits, error) {
	args := m.Called(ctx, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredits), args.Error(1)
}

// MockRecordingService is a mock implementation of service.RecordingService.
type MockRecordingService struct {
	mock.Mock
}

func (m *MockRecordingService) Start(ctx context.Context, userID, contentType string) (*domain.RecordingSession, error) {
	args := m.Called(ctx, userID, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordingSession), args.Error(1)
}

func (m *MockRecordingService) Append(ctx context.Context, userID string, id uuid.UUID, chunk []byte) (*domain.RecordingSession, error) {
	args := m.Called(ctx, userID, id, chunk)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordingSession), args.Error(1)
}

func (m *MockRecordingService) Pause(ctx context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordingSession), args.Error(1)
}

func (m *MockRecordingService) Resume(ctx context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordingSession), args.Error(1)
}

func (m *MockRecordingService) Abort(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockRecordingService) Finish(ctx context.Context, userID string, id uuid.UUID) (*domain.AudioPayload, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AudioPayload), args.Error(1)
}

func (m *MockRecordingService) Sweep(now time.Time) int {
	args := m.Called(now)
	return args.Int(0)
}

func (m *MockRecordingService) Run(ctx context.Context) {
	m.Called(ctx)
}

// MockTokenService is a mock implementation of service.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) ValidateToken(tokenString string) (*service.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}

func (m *MockTokenService) IssueToken(userID, email string, ttl time.Duration) (string, time.Time, error) {
	args := m.Called(userID, email, ttl)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
