package port

import (
	"context"

	"clinsight/internal/domain"
)

// TranscriptionInput carries recorded audio for speech-to-text.
type TranscriptionInput struct {
	Audio    []byte
	FileName string
	Language string
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, input TranscriptionInput) (string, error)
}

// VisionInput carries images plus the case text they belong to.
type VisionInput struct {
	CaseText string
	Images   []domain.ImagePayload
}

// VisionDescriber produces textual findings from case images.
type VisionDescriber interface {
	Describe(ctx context.Context, input VisionInput) (string, error)
}

// Researcher returns a literature report with citations for a case.
type Researcher interface {
	Research(ctx context.Context, caseText string) (*domain.ResearchReport, error)
}

// ReasoningInput carries everything the reasoning stage is given.
type ReasoningInput struct {
	CaseText string
	Research *domain.ResearchReport
}

// Reasoner produces the validated seven-section analysis.
type Reasoner interface {
	Reason(ctx context.Context, input ReasoningInput) (*domain.StructuredAnalysis, error)
}

// Admission caps concurrent real-pipeline runs per user. The returned
// release func must be called exactly once.
type Admission interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}
