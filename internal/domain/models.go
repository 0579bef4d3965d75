package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRequest is one submission. It lives only for the duration of a run.
type AnalysisRequest struct {
	UserID          string
	CaseText        string
	Audio           *AudioPayload
	Images          []ImagePayload
	UseRealPipeline bool
}

// AudioPayload is recorded audio attached to a submission.
type AudioPayload struct {
	Data        []byte
	ContentType string
	FileName    string
}

// ImagePayload is an image attached to a submission.
type ImagePayload struct {
	Data        []byte
	ContentType string
	FileName    string
}

// NormalizedCase is the single textual case description a run works from.
type NormalizedCase struct {
	Text       string
	UserText   string
	Transcript string
	Findings   string
	HadAudio   bool
	HadImages  bool
	Warnings   []string
}

// Reference is one citation returned by the research stage.
type Reference struct {
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Source     string `json:"source,omitempty"`
	Date       string `json:"date,omitempty"`
}

// Label returns the best human-readable handle for the reference.
func (r Reference) Label() string {
	switch {
	case r.Title != "":
		return r.Title
	case r.Identifier != "":
		return r.Identifier
	default:
		return r.URL
	}
}

// ResearchReport is the literature background for a case.
type ResearchReport struct {
	Report     string      `json:"report"`
	References []Reference `json:"references"`
	Model      string      `json:"model,omitempty"`
}

// IsEmpty reports whether the report carries no usable content.
func (r *ResearchReport) IsEmpty() bool {
	return r == nil || (r.Report == "" && len(r.References) == 0)
}

// RareDiseaseCandidate is one rare condition worth considering.
type RareDiseaseCandidate struct {
	Name      string `json:"name"`
	Rationale string `json:"rationale,omitempty"`
	OrphaCode string `json:"orpha_code,omitempty"`
}

// RareDiseaseData is optional supplementary output of the reasoning stage.
type RareDiseaseData struct {
	Considered bool                   `json:"considered"`
	Summary    string                 `json:"summary,omitempty"`
	Candidates []RareDiseaseCandidate `json:"candidates,omitempty"`
}

// StructuredAnalysis is the validated reasoning output.
type StructuredAnalysis struct {
	Title       string
	Sections    []Section
	RareDisease *RareDiseaseData
	Model       string
}

// ImageDescriptor describes an image attached to a stored analysis.
type ImageDescriptor struct {
	Index       int    `json:"index"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageKey  string `json:"storage_key,omitempty"`
	Stored      bool   `json:"stored"`
	Described   bool   `json:"described"`
}

// ModelInfo names the providers that produced an analysis.
type ModelInfo struct {
	Reasoning string `json:"reasoning,omitempty"`
	Research  string `json:"research,omitempty"`
}

// AnalysisRecord is the durable artifact of a successful run.
type AnalysisRecord struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	Title       string            `db:"title" json:"title"`
	CaseText    string            `db:"case_text" json:"case_text"`
	Transcript  string            `db:"transcript" json:"transcript,omitempty"`
	Sections    []Section         `db:"-" json:"sections"`
	References  []Reference       `db:"-" json:"references"`
	RareDisease *RareDiseaseData  `db:"-" json:"rare_disease,omitempty"`
	Images      []ImageDescriptor `db:"-" json:"images,omitempty"`
	Warnings    []string          `db:"-" json:"warnings,omitempty"`
	Models      ModelInfo         `db:"-" json:"models"`
	HadAudio    bool              `db:"had_audio" json:"had_audio"`
	HadImages   bool              `db:"had_images" json:"had_images"`
	IsDemo      bool              `db:"-" json:"isDemo"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// UserCredits is the per-user ledger account.
type UserCredits struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int       `db:"balance" json:"balance"`
	Used      int       `db:"used" json:"used"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Reservation is a provisional debit held until a run's outcome is known.
type Reservation struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	UserID     string            `db:"user_id" json:"user_id"`
	Status     ReservationStatus `db:"status" json:"status"`
	Debited    bool              `db:"debited" json:"debited"`
	AnalysisID *uuid.UUID        `db:"analysis_id" json:"analysis_id,omitempty"`
	Record     *AnalysisRecord   `db:"-" json:"-"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// AnalysisResult is what a run returns to the caller.
type AnalysisResult struct {
	RunID  string
	Record *AnalysisRecord
}

// RecordingSession is the externally visible view of an audio capture session.
type RecordingSession struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"user_id"`
	State       RecordingState `json:"state"`
	ContentType string         `json:"content_type"`
	Bytes       int64          `json:"bytes"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
