package domain

// RunState is a state of the analysis pipeline state machine.
type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateNormalizing RunState = "normalizing"
	RunStateReserving   RunState = "reserving"
	RunStateResearching RunState = "researching"
	RunStateReasoning   RunState = "reasoning"
	RunStatePersisting  RunState = "persisting"
	RunStateCompleted   RunState = "completed"
	RunStateRefunding   RunState = "refunding"
	RunStateFailed      RunState = "failed"
)

var runTransitions = map[RunState][]RunState{
	RunStateIdle:        {RunStateNormalizing},
	RunStateNormalizing: {RunStateReserving, RunStateResearching, RunStateFailed},
	RunStateReserving:   {RunStateResearching, RunStateFailed, RunStateRefunding},
	RunStateResearching: {RunStateReasoning, RunStateFailed, RunStateRefunding},
	RunStateReasoning:   {RunStatePersisting, RunStateFailed, RunStateRefunding},
	RunStatePersisting:  {RunStateCompleted, RunStateFailed, RunStateRefunding},
	RunStateRefunding:   {RunStateFailed},
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s RunState) CanTransition(next RunState) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// Stage names an external collaborator call.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageVision        Stage = "vision"
	StageResearch      Stage = "research"
	StageReasoning     Stage = "reasoning"
	StageImageUpload   Stage = "image_upload"
)

// ReservationStatus tracks a credit reservation through its lifecycle.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationPersisted ReservationStatus = "persisted"
	ReservationReleased  ReservationStatus = "released"
)

// RecordingState is a state of an audio capture session.
type RecordingState string

const (
	RecordingIdle      RecordingState = "idle"
	RecordingRecording RecordingState = "recording"
	RecordingPaused    RecordingState = "paused"
	RecordingStopped   RecordingState = "stopped"
)

// AllowedImageTypes lists image MIME types accepted as case attachments.
var AllowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AllowedAudioTypes lists audio MIME types accepted for transcription, keyed to a file extension.
var AllowedAudioTypes = map[string]string{
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp4":   "m4a",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
}
