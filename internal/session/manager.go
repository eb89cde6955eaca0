package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/container"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/dispatch"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/metrics"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/playback"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/recorder"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/transcript"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/vad"
)

// ManagerConfig contains everything needed to build pipeline sessions.
type ManagerConfig struct {
	VAD      vad.Config
	Recorder recorder.Config

	Provider   capture.Provider
	Dispatcher *dispatch.Client
	Player     *playback.Queue   // nil disables playback
	Store      *transcript.Store // nil disables persistence
	Metrics    *metrics.Metrics  // nil disables metrics
	Clock      clock.Clock
	Logger     *slog.Logger

	ExportDir      string
	FilenamePrefix string
}

// Info is a point-in-time snapshot of the manager's session state.
type Info struct {
	Active     bool      `json:"active"`
	SessionID  string    `json:"session_id,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Sentences  int       `json:"sentences"`
	MediaType  string    `json:"media_type,omitempty"`
	NoiseFloor float64   `json:"noise_floor,omitempty"`
	Pending    string    `json:"pending_translation,omitempty"`
}

// RecordHandler observes every finalized sentence of the active session.
type RecordHandler func(sessionID string, index int, record sentence.Record)

// Manager owns the single active session and the transcript of the most
// recent one.
type Manager struct {
	config ManagerConfig
	clk    clock.Clock
	logger *slog.Logger

	current *Session
	// lastRecords keeps the finished session's transcript available for
	// export until the next session starts.
	lastRecords   []sentence.Record
	lastSessionID string

	handlers []RecordHandler

	mu sync.Mutex
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Provider == nil {
		return nil, fmt.Errorf("capture provider cannot be nil")
	}

	if config.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}

	if config.Clock == nil {
		config.Clock = clock.System()
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Manager{
		config: config,
		clk:    config.Clock,
		logger: config.Logger,
	}, nil
}

// OnRecord registers a handler for finalized sentences. Must be called
// before Start.
func (m *Manager) OnRecord(handler RecordHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Start opens the capture device and spins up a new pipeline session. At
// most one session is active; starting while one runs is an error.
func (m *Manager) Start(deviceID string) (Info, error) {
	m.mu.Lock()

	if m.current != nil {
		id := m.current.ID
		m.mu.Unlock()
		return Info{}, fmt.Errorf("session %s already active", id)
	}

	stream, err := m.config.Provider.Open(deviceID)
	if err != nil {
		m.mu.Unlock()
		// Device errors are session-fatal and surfaced as-is.
		return Info{}, fmt.Errorf("failed to open capture device: %w", err)
	}

	detector, err := vad.NewDetector(m.config.VAD, m.clk)
	if err != nil {
		stream.Close()
		m.mu.Unlock()
		return Info{}, fmt.Errorf("failed to create detector: %w", err)
	}

	rec, err := recorder.New(m.config.Recorder, func() (capture.EncoderSession, error) {
		return capture.NewWAVEncoderSession(stream)
	}, m.clk, m.logger)
	if err != nil {
		stream.Close()
		m.mu.Unlock()
		return Info{}, fmt.Errorf("failed to create recorder: %w", err)
	}

	if err := rec.Start(); err != nil {
		stream.Close()
		m.mu.Unlock()
		return Info{}, fmt.Errorf("failed to start recorder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	session := &Session{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		StartedAt: m.clk.Now(),

		stream:   stream,
		detector: detector,
		rec:      rec,
		repairer: container.NewRepairer(),
		acc:      sentence.NewAccumulator(m.logger),

		dispatcher: m.config.Dispatcher,
		player:     m.config.Player,
		metrics:    m.config.Metrics,
		clk:        m.clk,
		logger:     m.logger,

		onRecord: m.recordSink,

		sampleInterval: m.config.VAD.SampleInterval,
		flushEvery:     m.config.Recorder.FlushInterval,

		segmentCh: make(chan *dispatch.Segment, 16),
		speakCh:   make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
		window:    make([]float64, m.config.VAD.WindowSize),
	}

	m.current = session
	m.lastRecords = nil
	m.lastSessionID = session.ID
	m.mu.Unlock()

	// One-time autoplay unlock, before any real playback is needed. Runs
	// outside the manager lock: it is a real playback round trip and must
	// not stall Info. A failure here is not fatal, the first real play
	// retries on its own.
	if session.player != nil {
		if err := session.player.Unlock(ctx); err != nil {
			m.logger.Warn("Autoplay unlock failed", slog.String("error", err.Error()))
		}
	}

	session.start()

	m.logger.Info("Session started",
		slog.String("session_id", session.ID),
		slog.String("device_id", deviceID),
		slog.String("media_type", rec.MediaType()),
	)

	return m.Info(), nil
}

// Stop tears down the active session, force-finalizing the pending
// sentence.
func (m *Manager) Stop() (Info, error) {
	m.mu.Lock()
	session := m.current
	m.mu.Unlock()

	if session == nil {
		return Info{}, fmt.Errorf("no active session")
	}

	session.stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRecords = session.Records()
	m.current = nil

	m.logger.Info("Session stopped",
		slog.String("session_id", session.ID),
		slog.Int("sentences", len(m.lastRecords)),
	)

	return m.infoLocked(), nil
}

// recordSink fans a finalized sentence out to persistence and handlers.
func (m *Manager) recordSink(sessionID string, index int, record sentence.Record) {
	if m.config.Store != nil {
		if err := m.config.Store.Append(sessionID, index, record); err != nil {
			m.logger.Warn("Failed to persist transcript record",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.mu.Lock()
	handlers := make([]RecordHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(sessionID, index, record)
	}
}

// Info returns a snapshot of the current session state.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Manager) infoLocked() Info {
	if m.current == nil {
		return Info{
			Active:    false,
			SessionID: m.lastSessionID,
			Sentences: len(m.lastRecords),
		}
	}

	return Info{
		Active:     true,
		SessionID:  m.current.ID,
		DeviceID:   m.current.DeviceID,
		StartedAt:  m.current.StartedAt,
		Sentences:  len(m.current.Records()),
		MediaType:  m.current.rec.MediaType(),
		NoiseFloor: m.current.detector.NoiseFloor(),
		Pending:    m.current.acc.PendingTranslation(),
	}
}

// Records returns the transcript of the active session, or of the most
// recently finished one.
func (m *Manager) Records() []sentence.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current.Records()
	}

	records := make([]sentence.Record, len(m.lastRecords))
	copy(records, m.lastRecords)
	return records
}

// Export renders the transcript to the export directory and returns the
// written path.
func (m *Manager) Export() (string, error) {
	records := m.Records()
	if len(records) == 0 {
		return "", fmt.Errorf("no transcript to export")
	}

	content := transcript.Render(records)
	filename := transcript.Filename(m.config.FilenamePrefix, m.clk.Now())

	return transcript.WriteFile(m.config.ExportDir, filename, content, m.logger)
}

// Devices lists the available capture devices.
func (m *Manager) Devices() ([]capture.Device, error) {
	return m.config.Provider.Devices()
}

// Close stops any active session.
func (m *Manager) Close() error {
	m.mu.Lock()
	session := m.current
	m.mu.Unlock()

	if session != nil {
		if _, err := m.Stop(); err != nil {
			return err
		}
	}
	return nil
}
