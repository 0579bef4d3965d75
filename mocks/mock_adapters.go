package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// MockTranscriber is a mock implementation of port.Transcriber.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, input port.TranscriptionInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockVisionDescriber is a mock implementation of port.VisionDescriber.
type MockVisionDescriber struct {
	mock.Mock
}

func (m *MockVisionDescriber) Describe(ctx context.Context, input port.VisionInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockResearcher is a mock implementation of port.Researcher.
type MockResearcher struct {
	mock.Mock
}

func (m *MockResearcher) Research(ctx context.Context, caseText string) (*domain.ResearchReport, error) {
	args := m.Called(ctx, caseText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResearchReport), args.Error(1)
}

// MockReasoner is a mock implementation of port.Reasoner.
type MockReasoner struct {
	mock.Mock
}

func (m *MockReasoner) Reason(ctx context.Context, input port.ReasoningInput) (*domain.StructuredAnalysis, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StructuredAnalysis), args.Error(1)
}

// MockAdmission is a mock implementation of port.Admission.
type MockAdmission struct {
	mock.Mock
}

func (m *MockAdmission) Acquire(ctx context.Context, userID string) (func(), error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}
