package capture_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/capture"
	"clinsight/internal/domain"
)

func TestRecorder_Lifecycle(t *testing.T) {
	sink := capture.NewBufferSink()
	rec := capture.NewRecorder(sink, "audio/webm", 0)
	assert.Equal(t, domain.RecordingIdle, rec.State())

	require.NoError(t, rec.Start())
	assert.Equal(t, domain.RecordingRecording, rec.State())

	require.NoError(t, rec.Append([]byte("he")))
	require.NoError(t, rec.Pause())
	assert.Equal(t, domain.RecordingPaused, rec.State())
	require.NoError(t, rec.Resume())
	require.NoError(t, rec.Append([]byte("llo")))
	assert.Equal(t, int64(5), rec.Written())

	data, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, domain.RecordingStopped, rec.State())
	assert.Equal(t, 1, sink.Releases())
}

func TestRecorder_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *capture.Recorder)
		op    func(r *capture.Recorder) error
	}{
		{"append while idle", func(*capture.Recorder) {}, func(r *capture.Recorder) error { return r.Append([]byte("x")) }},
		{"pause while idle", func(*capture.Recorder) {}, (*capture.Recorder).Pause},
		{"resume while recording", func(r *capture.Recorder) { _ = r.Start() }, (*capture.Recorder).Resume},
		{"pause while paused", func(r *capture.Recorder) { _ = r.Start(); _ = r.Pause() }, (*capture.Recorder).Pause},
		{"append while paused", func(r *capture.Recorder) { _ = r.Start(); _ = r.Pause() },
			func(r *capture.Recorder) error { return r.Append([]byte("x")) }},
		{"start twice", func(r *capture.Recorder) { _ = r.Start() }, (*capture.Recorder).Start},
		{"stop while idle", func(*capture.Recorder) {}, func(r *capture.Recorder) error { _, err := r.Stop(); return err }},
		{"restart after stop", func(r *capture.Recorder) { _ = r.Start(); r.Abort() }, (*capture.Recorder).Start},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := capture.NewRecorder(capture.NewBufferSink(), "audio/webm", 0)
			tt.setup(rec)
			assert.ErrorIs(t, tt.op(rec), domain.ErrRecordingState)
		})
	}
}

func TestRecorder_AbortReleasesExactlyOnce(t *testing.T) {
	sink := capture.NewBufferSink()
	rec := capture.NewRecorder(sink, "audio/webm", 0)
	require.NoError(t, rec.Start())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Abort()
		}()
	}
	wg.Wait()

	_, err := rec.Stop()
	assert.ErrorIs(t, err, domain.ErrRecordingState)
	assert.Equal(t, 1, sink.Releases())
}

func TestRecorder_AbortFromIdle(t *testing.T) {
	sink := capture.NewBufferSink()
	rec := capture.NewRecorder(sink, "audio/webm", 0)

	rec.Abort()
	assert.Equal(t, domain.RecordingStopped, rec.State())
	assert.Equal(t, 1, sink.Releases())
}

func TestRecorder_MaxBytes(t *testing.T) {
	rec := capture.NewRecorder(capture.NewBufferSink(), "audio/ogg", 3)
	require.NoError(t, rec.Start())

	require.NoError(t, rec.Append([]byte("ab")))
	assert.ErrorIs(t, rec.Append([]byte("cd")), domain.ErrInvalidInput)
	assert.Equal(t, domain.RecordingRecording, rec.State())
	require.NoError(t, rec.Append([]byte("c")))
}

func TestRecorder_OpenFailureStops(t *testing.T) {
	sink := capture.NewBufferSink()
	rec := capture.NewRecorder(sink, "text/plain", 0)

	err := rec.Start()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.RecordingStopped, rec.State())
	assert.Equal(t, 1, sink.Releases())
}

type brokenSink struct {
	*capture.BufferSink
}

func (brokenSink) Write([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestRecorder_WriteFailureEndsSession(t *testing.T) {
	sink := brokenSink{BufferSink: capture.NewBufferSink()}
	rec := capture.NewRecorder(sink, "audio/webm", 0)
	require.NoError(t, rec.Start())

	err := rec.Append([]byte("x"))
	require.Error(t, err)
	assert.Equal(t, domain.RecordingStopped, rec.State())
	assert.Equal(t, 1, sink.Releases())
}
