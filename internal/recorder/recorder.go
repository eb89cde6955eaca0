package recorder

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
)

// State represents the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateRestarting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateRestarting:
		return "restarting"
	default:
		return "idle"
	}
}

// Chunk is one emitted audio chunk ready for repair and dispatch. Each chunk
// is consumed exactly once.
type Chunk struct {
	Seq       uint64        `json:"seq"`
	Data      []byte        `json:"-"`
	MediaType string        `json:"media_type"`
	Duration  time.Duration `json:"duration"`
	FlushedAt time.Time     `json:"flushed_at"`
	Silence   bool          `json:"silence"` // flushed by a silence timeout
}

// Config contains recorder timing and threshold parameters.
type Config struct {
	FlushInterval       time.Duration // fixed flush cadence
	MinDispatchBytes    int           // minimum buffered bytes before dispatch
	MinDispatchDuration time.Duration // minimum buffered duration before dispatch
	MaxBufferedDuration time.Duration // hard cap forcing a flush
	AlwaysRestart       bool          // rebuild the session after every dispatch
}

// DefaultConfig returns the flush parameters used by the live pipeline.
func DefaultConfig() Config {
	return Config{
		FlushInterval:       1500 * time.Millisecond,
		MinDispatchBytes:    4096,
		MinDispatchDuration: 1000 * time.Millisecond,
		MaxBufferedDuration: 6000 * time.Millisecond,
	}
}

// Stats represents recorder statistics.
type Stats struct {
	State            string        `json:"state"`
	ChunksEmitted    uint64        `json:"chunks_emitted"`
	ChunksRebuffered uint64        `json:"chunks_rebuffered"`
	SilenceFlushes   uint64        `json:"silence_flushes"`
	Restarts         uint64        `json:"restarts"`
	BufferedBytes    int           `json:"buffered_bytes"`
	BufferedDuration time.Duration `json:"buffered_duration"`
}

// Recorder accumulates encoder output and emits chunks when dispatch
// thresholds are met. Exactly one encoder session is active while recording.
type Recorder struct {
	config      Config
	openSession func() (capture.EncoderSession, error)
	clk         clock.Clock
	logger      *slog.Logger

	session   capture.EncoderSession
	mediaType string
	state     State

	buf      bytes.Buffer
	buffered time.Duration
	seq      uint64

	chunksEmitted    uint64
	chunksRebuffered uint64
	silenceFlushes   uint64
	restarts         uint64

	mu sync.Mutex
}

// New creates a recorder. openSession is called for the initial session and
// again on every restart; it must negotiate the same media type each time.
func New(config Config, openSession func() (capture.EncoderSession, error), clk clock.Clock, logger *slog.Logger) (*Recorder, error) {
	if config.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %v", config.FlushInterval)
	}

	if config.MinDispatchBytes <= 0 {
		return nil, fmt.Errorf("min dispatch bytes must be positive, got %d", config.MinDispatchBytes)
	}

	if config.MinDispatchDuration <= 0 {
		return nil, fmt.Errorf("min dispatch duration must be positive, got %v", config.MinDispatchDuration)
	}

	if config.MaxBufferedDuration <= config.MinDispatchDuration {
		return nil, fmt.Errorf("max buffered duration (%v) must exceed min dispatch duration (%v)",
			config.MaxBufferedDuration, config.MinDispatchDuration)
	}

	if openSession == nil {
		return nil, fmt.Errorf("openSession cannot be nil")
	}

	if clk == nil {
		clk = clock.System()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		config:      config,
		openSession: openSession,
		clk:         clk,
		logger:      logger,
		state:       StateIdle,
	}, nil
}

// Start opens the encoder session and begins recording.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("recorder already started (state %s)", r.state)
	}

	session, err := r.openSession()
	if err != nil {
		return fmt.Errorf("failed to open encoder session: %w", err)
	}

	r.session = session
	r.mediaType = session.MediaType()
	r.state = StateRecording
	r.buf.Reset()
	r.buffered = 0
	r.seq = 0

	r.logger.Info("Recorder started", slog.String("media_type", r.mediaType))
	return nil
}

// Flush drains the encoder and emits a chunk if dispatch thresholds are met.
// silence marks a VAD-triggered flush. An under-threshold buffer is kept and
// merged with the next flush; the hard duration cap overrides the thresholds.
func (r *Recorder) Flush(silence bool) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, fmt.Errorf("recorder not recording (state %s)", r.state)
	}

	fragment, err := r.session.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoder flush failed: %w", err)
	}

	if len(fragment) > 0 {
		r.buf.Write(fragment)
		// Duration is approximate: one flush interval of audio per
		// non-empty fragment.
		r.buffered += r.config.FlushInterval
	}

	if silence {
		r.silenceFlushes++
	}

	capped := r.buffered >= r.config.MaxBufferedDuration
	ready := r.buf.Len() >= r.config.MinDispatchBytes && r.buffered >= r.config.MinDispatchDuration

	if !capped && !ready {
		if r.buf.Len() > 0 {
			r.chunksRebuffered++
		}
		return nil, nil
	}

	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())

	r.seq++
	chunk := &Chunk{
		Seq:       r.seq,
		Data:      data,
		MediaType: r.mediaType,
		Duration:  r.buffered,
		FlushedAt: r.clk.Now(),
		Silence:   silence,
	}

	r.buf.Reset()
	r.buffered = 0
	r.chunksEmitted++

	r.logger.Debug("Chunk emitted",
		slog.Uint64("seq", chunk.Seq),
		slog.Int("bytes", len(chunk.Data)),
		slog.Duration("duration", chunk.Duration),
		slog.Bool("silence", silence),
		slog.Bool("capped", capped),
	)

	return chunk, nil
}

// Restart tears down the encoder session and rebuilds it with the same
// negotiated media type. The old session is closed before the new one is
// created and buffered audio survives the swap, so there is no audible gap.
func (r *Recorder) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return fmt.Errorf("cannot restart in state %s", r.state)
	}

	r.state = StateRestarting

	if err := r.session.Close(); err != nil {
		r.logger.Warn("Error closing encoder session on restart", slog.String("error", err.Error()))
	}

	session, err := r.openSession()
	if err != nil {
		r.state = StateIdle
		r.session = nil
		return fmt.Errorf("failed to reopen encoder session: %w", err)
	}

	if session.MediaType() != r.mediaType {
		session.Close()
		r.state = StateIdle
		r.session = nil
		return fmt.Errorf("restarted session negotiated %q, expected %q", session.MediaType(), r.mediaType)
	}

	r.session = session
	r.state = StateRecording
	r.restarts++

	r.logger.Debug("Recorder session restarted",
		slog.String("media_type", r.mediaType),
		slog.Int("buffered_bytes", r.buf.Len()),
	)

	return nil
}

// RestartAfterDispatch reports whether the session must be rebuilt after a
// dispatch. hardRestartType is true for container types that cannot keep
// fragmenting after an upload.
func (r *Recorder) RestartAfterDispatch(hardRestartType bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hardRestartType || r.config.AlwaysRestart
}

// Stop closes the encoder session and discards any buffered, undispatched
// audio.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return nil
	}

	var err error
	if r.session != nil {
		err = r.session.Close()
		r.session = nil
	}

	discarded := r.buf.Len()
	r.buf.Reset()
	r.buffered = 0
	r.state = StateIdle

	r.logger.Info("Recorder stopped", slog.Int("discarded_bytes", discarded))
	return err
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MediaType returns the negotiated media type of the active session.
func (r *Recorder) MediaType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mediaType
}

// GetStats returns current recorder statistics.
func (r *Recorder) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		State:            r.state.String(),
		ChunksEmitted:    r.chunksEmitted,
		ChunksRebuffered: r.chunksRebuffered,
		SilenceFlushes:   r.silenceFlushes,
		Restarts:         r.restarts,
		BufferedBytes:    r.buf.Len(),
		BufferedDuration: r.buffered,
	}
}
