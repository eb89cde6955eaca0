package recorder

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
)

// fakeSession is a scriptable encoder session.
type fakeSession struct {
	mediaType string
	fragments [][]byte
	encodes   int
	closed    bool
	encodeErr error
}

func (f *fakeSession) MediaType() string {
	return f.mediaType
}

func (f *fakeSession) Encode() ([]byte, error) {
	f.encodes++
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	if len(f.fragments) == 0 {
		return nil, nil
	}
	fragment := f.fragments[0]
	f.fragments = f.fragments[1:]
	return fragment, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newTestRecorder(t *testing.T, session *fakeSession) (*Recorder, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	rec, err := New(DefaultConfig(), func() (capture.EncoderSession, error) {
		return session, nil
	}, mock, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return rec, mock
}

func TestNewValidation(t *testing.T) {
	open := func() (capture.EncoderSession, error) { return &fakeSession{mediaType: "audio/wav"}, nil }

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero flush interval", func(c *Config) { c.FlushInterval = 0 }},
		{"zero min bytes", func(c *Config) { c.MinDispatchBytes = 0 }},
		{"zero min duration", func(c *Config) { c.MinDispatchDuration = 0 }},
		{"cap below min", func(c *Config) { c.MaxBufferedDuration = 500 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)

			if _, err := New(config, open, nil, nil); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}

	if _, err := New(DefaultConfig(), nil, nil, nil); err == nil {
		t.Error("Expected error for nil openSession")
	}
}

func TestFlushBelowThresholdsRebuffers(t *testing.T) {
	session := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{bytes.Repeat([]byte{0x01}, 1000)},
	}
	rec, _ := newTestRecorder(t, session)

	// 1000 bytes / 1500ms: byte threshold not met.
	chunk, err := rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk != nil {
		t.Error("Chunk emitted below the 4096-byte threshold")
	}

	stats := rec.GetStats()
	if stats.BufferedBytes != 1000 {
		t.Errorf("BufferedBytes = %d, expected 1000 (re-buffered)", stats.BufferedBytes)
	}
	if stats.ChunksRebuffered != 1 {
		t.Errorf("ChunksRebuffered = %d, expected 1", stats.ChunksRebuffered)
	}
}

func TestFlushMergesRebufferedAudio(t *testing.T) {
	session := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{
			bytes.Repeat([]byte{0x01}, 3000),
			bytes.Repeat([]byte{0x02}, 3000),
		},
	}
	rec, _ := newTestRecorder(t, session)

	chunk, err := rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk != nil {
		t.Fatal("First flush should re-buffer (3000 bytes < 4096)")
	}

	chunk, err = rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk == nil {
		t.Fatal("Second flush should emit: 6000 bytes, 3000ms buffered")
	}

	if len(chunk.Data) != 6000 {
		t.Errorf("Chunk size = %d, expected merged 6000 bytes", len(chunk.Data))
	}
	if chunk.Duration != 3000*time.Millisecond {
		t.Errorf("Chunk duration = %v, expected 3s", chunk.Duration)
	}
	if chunk.Seq != 1 {
		t.Errorf("Chunk seq = %d, expected 1", chunk.Seq)
	}
	if !bytes.Equal(chunk.Data[:3000], bytes.Repeat([]byte{0x01}, 3000)) {
		t.Error("Merged chunk must preserve fragment order")
	}
}

func TestFlushDurationGate(t *testing.T) {
	// Large fragment meets the byte threshold immediately, but a single
	// 1500ms interval is counted per non-empty fragment, so only after the
	// duration threshold is also met does a chunk go out.
	config := DefaultConfig()
	config.MinDispatchDuration = 2000 * time.Millisecond

	session := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{
			bytes.Repeat([]byte{0x01}, 8192),
			bytes.Repeat([]byte{0x02}, 8192),
		},
	}

	rec, err := New(config, func() (capture.EncoderSession, error) { return session, nil }, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk != nil {
		t.Error("Chunk emitted with only 1500ms buffered, duration gate is 2000ms")
	}

	chunk, err = rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk == nil {
		t.Error("Expected chunk once 3000ms buffered")
	}
}

func TestHardCapForcesFlush(t *testing.T) {
	// Fragments stay tiny so the byte threshold is never met; the 6000ms
	// cap must force the flush anyway.
	session := &fakeSession{mediaType: "audio/wav"}
	for i := 0; i < 10; i++ {
		session.fragments = append(session.fragments, bytes.Repeat([]byte{byte(i)}, 100))
	}
	rec, _ := newTestRecorder(t, session)

	var chunk *Chunk
	var err error
	flushes := 0
	for chunk == nil && flushes < 10 {
		chunk, err = rec.Flush(false)
		if err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		flushes++
	}

	if chunk == nil {
		t.Fatal("Hard cap never forced a flush")
	}
	if chunk.Duration < 6000*time.Millisecond {
		t.Errorf("Forced chunk duration = %v, expected >= 6s", chunk.Duration)
	}
	if flushes != 4 {
		t.Errorf("Forced flush after %d flushes, expected 4 (4 x 1500ms = 6000ms)", flushes)
	}
}

func TestEmptyFragmentAddsNoDuration(t *testing.T) {
	session := &fakeSession{mediaType: "audio/wav"}
	rec, _ := newTestRecorder(t, session)

	for i := 0; i < 5; i++ {
		chunk, err := rec.Flush(false)
		if err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		if chunk != nil {
			t.Fatal("Chunk emitted with no audio")
		}
	}

	if stats := rec.GetStats(); stats.BufferedDuration != 0 {
		t.Errorf("BufferedDuration = %v, expected 0 for empty fragments", stats.BufferedDuration)
	}
}

func TestRestartPreservesBufferedAudio(t *testing.T) {
	first := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{bytes.Repeat([]byte{0x01}, 3000)},
	}
	second := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{bytes.Repeat([]byte{0x02}, 3000)},
	}

	sessions := []*fakeSession{first, second}
	rec, err := New(DefaultConfig(), func() (capture.EncoderSession, error) {
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Buffer audio below threshold, then restart mid-stream.
	if _, err := rec.Flush(false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := rec.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	if !first.closed {
		t.Error("Old session must be closed on restart")
	}
	if stats := rec.GetStats(); stats.BufferedBytes != 3000 {
		t.Errorf("BufferedBytes = %d after restart, expected preserved 3000", stats.BufferedBytes)
	}

	// Audio from the new session merges with the preserved buffer.
	chunk, err := rec.Flush(false)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if chunk == nil {
		t.Fatal("Expected chunk after restart")
	}
	if len(chunk.Data) != 6000 {
		t.Errorf("Chunk size = %d, expected 6000 spanning the restart", len(chunk.Data))
	}
}

func TestRestartMediaTypeMismatch(t *testing.T) {
	sessions := []*fakeSession{
		{mediaType: "audio/wav"},
		{mediaType: "audio/webm"},
	}
	rec, err := New(DefaultConfig(), func() (capture.EncoderSession, error) {
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := rec.Restart(); err == nil {
		t.Error("Expected error when restart negotiates a different media type")
	}
}

func TestRestartAfterDispatch(t *testing.T) {
	session := &fakeSession{mediaType: "audio/wav"}
	rec, _ := newTestRecorder(t, session)

	if rec.RestartAfterDispatch(false) {
		t.Error("No restart expected for soft container types")
	}
	if !rec.RestartAfterDispatch(true) {
		t.Error("Restart expected for hard-restart container types")
	}

	config := DefaultConfig()
	config.AlwaysRestart = true
	always, err := New(config, func() (capture.EncoderSession, error) { return session, nil }, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !always.RestartAfterDispatch(false) {
		t.Error("AlwaysRestart must force restart for any type")
	}
}

func TestStopDiscardsBufferedAudio(t *testing.T) {
	session := &fakeSession{
		mediaType: "audio/wav",
		fragments: [][]byte{bytes.Repeat([]byte{0x01}, 2000)},
	}
	rec, _ := newTestRecorder(t, session)

	if _, err := rec.Flush(false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !session.closed {
		t.Error("Stop must close the encoder session")
	}
	if stats := rec.GetStats(); stats.BufferedBytes != 0 {
		t.Error("Stop must discard buffered audio")
	}
	if rec.State() != StateIdle {
		t.Errorf("State = %v after Stop, expected idle", rec.State())
	}

	if _, err := rec.Flush(false); err == nil {
		t.Error("Flush after Stop must fail")
	}
}

func TestEncodeErrorPropagates(t *testing.T) {
	session := &fakeSession{
		mediaType: "audio/wav",
		encodeErr: errors.New("encoder died"),
	}
	rec, _ := newTestRecorder(t, session)

	if _, err := rec.Flush(false); err == nil {
		t.Error("Expected encoder error to propagate")
	}
}
