package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinsight/internal/capture"
	"clinsight/internal/config"
	"clinsight/internal/domain"
)

// RecordingService manages server-side audio capture sessions.
type RecordingService interface {
	Start(ctx context.Context, userID, contentType string) (*domain.RecordingSession, error)
	Append(ctx context.Context, userID string, id uuid.UUID, chunk []byte) (*domain.RecordingSession, error)
	Pause(ctx context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error)
	Resume(ctx context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error)
	Abort(ctx context.Context, userID string, id uuid.UUID) error
	// Finish stops the session and hands back its audio. The session is gone
	// afterwards.
	Finish(ctx context.Context, userID string, id uuid.UUID) (*domain.AudioPayload, error)
	Sweep(now time.Time) int
	Run(ctx context.Context)
}

type recordingSession struct {
	id          uuid.UUID
	userID      string
	contentType string
	recorder    *capture.Recorder
	startedAt   time.Time
	updatedAt   time.Time
}

type recordingService struct {
	cfg      config.RecordingConfig
	maxBytes int64
	newSink  func() capture.Sink
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*recordingSession
}

// NewRecordingService creates a RecordingService. newSink supplies the
// buffer backing each session.
func NewRecordingService(cfg config.RecordingConfig, maxBytes int64, newSink func() capture.Sink) RecordingService {
	if newSink == nil {
		newSink = func() capture.Sink { return capture.NewBufferSink() }
	}
	cfg.SessionTTL = orDefault(cfg.SessionTTL, 15*time.Minute)
	cfg.SweepInterval = orDefault(cfg.SweepInterval, time.Minute)
	return &recordingService{
		cfg:      cfg,
		maxBytes: maxBytes,
		newSink:  newSink,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*recordingSession),
	}
}

func (s *recordingService) Start(_ context.Context, userID, contentType string) (*domain.RecordingSession, error) {
	contentType = baseMediaType(contentType)
	if _, ok := domain.AllowedAudioTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: unsupported audio type %q", domain.ErrInvalidInput, contentType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		return nil, fmt.Errorf("%w: too many open recordings", domain.ErrTooManyInFlight)
	}

	rec := capture.NewRecorder(s.newSink(), contentType, s.maxBytes)
	if err := rec.Start(); err != nil {
		return nil, fmt.Errorf("recording.Start: %w", err)
	}
	now := s.now()
	sess := &recordingSession{
		id:          uuid.New(),
		userID:      userID,
		contentType: contentType,
		recorder:    rec,
		startedAt:   now,
		updatedAt:   now,
	}
	s.sessions[sess.id] = sess
	log.Debug().Str("recording_id", sess.id.String()).Str("user_id", userID).Msg("recording.Start: session opened")
	return sess.view(), nil
}

func (s *recordingService) Append(_ context.Context, userID string, id uuid.UUID, chunk []byte) (*domain.RecordingSession, error) {
	return s.apply(userID, id, func(rec *capture.Recorder) error { return rec.Append(chunk) })
}

func (s *recordingService) Pause(_ context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error) {
	return s.apply(userID, id, (*capture.Recorder).Pause)
}

func (s *recordingService) Resume(_ context.Context, userID string, id uuid.UUID) (*domain.RecordingSession, error) {
	return s.apply(userID, id, (*capture.Recorder).Resume)
}

func (s *recordingService) Abort(_ context.Context, userID string, id uuid.UUID) error {
	sess, err := s.take(userID, id)
	if err != nil {
		return err
	}
	sess.recorder.Abort()
	return nil
}

func (s *recordingService) Finish(_ context.Context, userID string, id uuid.UUID) (*domain.AudioPayload, error) {
	sess, err := s.take(userID, id)
	if err != nil {
		return nil, err
	}
	data, err := sess.recorder.Stop()
	if err != nil {
		sess.recorder.Abort()
		return nil, fmt.Errorf("recording.Finish: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: recording is empty", domain.ErrInvalidInput)
	}
	return &domain.AudioPayload{
		Data:        data,
		ContentType: sess.contentType,
		FileName:    "recording." + domain.AllowedAudioTypes[sess.contentType],
	}, nil
}

// Sweep aborts sessions idle for longer than the session TTL.
func (s *recordingService) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []*recordingSession
	for id, sess := range s.sessions {
		if now.Sub(sess.updatedAt) > s.cfg.SessionTTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.recorder.Abort()
		log.Info().Str("recording_id", sess.id.String()).Str("user_id", sess.userID).Msg("recording.Sweep: expired session aborted")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is canceled, then aborts the rest.
func (s *recordingService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			remaining := s.sessions
			s.sessions = make(map[uuid.UUID]*recordingSession)
			s.mu.Unlock()
			for _, sess := range remaining {
				sess.recorder.Abort()
			}
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// apply runs op against an owned session. An op that ends the recorder
// (a sink failure) also drops the session.
func (s *recordingService) apply(userID string, id uuid.UUID, op func(*capture.Recorder) error) (*domain.RecordingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(userID, id)
	if err != nil {
		return nil, err
	}
	opErr := op(sess.recorder)
	sess.updatedAt = s.now()
	if sess.recorder.State() == domain.RecordingStopped {
		delete(s.sessions, id)
	}
	if opErr != nil {
		return nil, opErr
	}
	return sess.view(), nil
}

func (s *recordingService) take(userID string, id uuid.UUID) (*recordingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(userID, id)
	if err != nil {
		return nil, err
	}
	delete(s.sessions, id)
	return sess, nil
}

func (s *recordingService) lookupLocked(userID string, id uuid.UUID) (*recordingSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	if sess.userID != userID {
		return nil, domain.ErrForbidden
	}
	return sess, nil
}

func (sess *recordingSession) view() *domain.RecordingSession {
	return &domain.RecordingSession{
		ID:          sess.id,
		UserID:      sess.userID,
		State:       sess.recorder.State(),
		ContentType: sess.contentType,
		Bytes:       sess.recorder.Written(),
		StartedAt:   sess.startedAt,
		UpdatedAt:   sess.updatedAt,
	}
}
