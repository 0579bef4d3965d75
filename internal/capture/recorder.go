// Package capture models a server-side audio capture session as an explicit
// finite-state resource: idle -> recording <-> paused -> stopped.
//
// The Sink stands in for the capture device. A Recorder acquires it on Start
// and releases it exactly once, whichever way the session ends.
package capture

import (
	"bytes"
	"fmt"
	"sync"

	"clinsight/internal/domain"
)

// Sink receives captured audio.
type Sink interface {
	Open(contentType string) error
	Write(p []byte) (int, error)
	// Drain returns everything written so far.
	Drain() []byte
	Release()
}

var transitions = map[domain.RecordingState][]domain.RecordingState{
	domain.RecordingIdle:      {domain.RecordingRecording, domain.RecordingStopped},
	domain.RecordingRecording: {domain.RecordingPaused, domain.RecordingStopped},
	domain.RecordingPaused:    {domain.RecordingRecording, domain.RecordingStopped},
}

func canTransition(from, to domain.RecordingState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Recorder drives a Sink through the capture lifecycle. It is safe for
// concurrent use.
type Recorder struct {
	mu          sync.Mutex
	sink        Sink
	contentType string
	maxBytes    int64
	state       domain.RecordingState
	written     int64
	released    bool
}

// NewRecorder creates an idle recorder. maxBytes <= 0 means no limit.
func NewRecorder(sink Sink, contentType string, maxBytes int64) *Recorder {
	return &Recorder{
		sink:        sink,
		contentType: contentType,
		maxBytes:    maxBytes,
		state:       domain.RecordingIdle,
	}
}

// State returns the current state.
func (r *Recorder) State() domain.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Written returns the number of bytes captured so far.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Start acquires the sink and begins recording.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.moveLocked(domain.RecordingRecording); err != nil {
		return err
	}
	if err := r.sink.Open(r.contentType); err != nil {
		r.stopLocked()
		return fmt.Errorf("capture.Recorder.Start: %w", err)
	}
	return nil
}

// Append writes a chunk. It is legal only while recording. A sink failure
// ends the session.
func (r *Recorder) Append(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RecordingRecording {
		return fmt.Errorf("%w: cannot append while %s", domain.ErrRecordingState, r.state)
	}
	if r.maxBytes > 0 && r.written+int64(len(chunk)) > r.maxBytes {
		return fmt.Errorf("%w: recording exceeds %d bytes", domain.ErrInvalidInput, r.maxBytes)
	}
	n, err := r.sink.Write(chunk)
	r.written += int64(n)
	if err != nil {
		r.stopLocked()
		return fmt.Errorf("capture.Recorder.Append: %w", err)
	}
	return nil
}

// Pause suspends recording.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RecordingRecording {
		return fmt.Errorf("%w: cannot pause while %s", domain.ErrRecordingState, r.state)
	}
	return r.moveLocked(domain.RecordingPaused)
}

// Resume continues a paused recording.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RecordingPaused {
		return fmt.Errorf("%w: cannot resume while %s", domain.ErrRecordingState, r.state)
	}
	return r.moveLocked(domain.RecordingRecording)
}

// Stop ends the session and returns the captured audio. Stopping a session
// that never started or is already stopped is an error.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RecordingRecording && r.state != domain.RecordingPaused {
		return nil, fmt.Errorf("%w: cannot stop while %s", domain.ErrRecordingState, r.state)
	}
	data := r.sink.Drain()
	r.stopLocked()
	return data, nil
}

// Abort discards the session from any state. It is idempotent.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) moveLocked(next domain.RecordingState) error {
	if !canTransition(r.state, next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrRecordingState, r.state, next)
	}
	r.state = next
	return nil
}

func (r *Recorder) stopLocked() {
	r.state = domain.RecordingStopped
	if !r.released {
		r.released = true
		r.sink.Release()
	}
}

// BufferSink keeps captured audio in memory.
type BufferSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	open     bool
	releases int
}

// NewBufferSink creates an empty in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) Open(contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := domain.AllowedAudioTypes[contentType]; !ok {
		return fmt.Errorf("%w: unsupported audio type %q", domain.ErrInvalidInput, contentType)
	}
	s.open = true
	return nil
}

func (s *BufferSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, fmt.Errorf("sink is not open")
	}
	return s.buf.Write(p)
}

func (s *BufferSink) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}

func (s *BufferSink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.buf.Reset()
	s.releases++
}

// Releases returns how many times the sink has been released.
func (s *BufferSink) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}
