package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/container"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/dispatch"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/metrics"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/playback"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/recorder"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/vad"
)

// Session owns all pipeline state for one live translation run.
type Session struct {
	ID        string
	DeviceID  string
	StartedAt time.Time

	stream   capture.Stream
	detector *vad.Detector
	rec      *recorder.Recorder
	repairer *container.Repairer
	acc      *sentence.Accumulator

	dispatcher *dispatch.Client
	player     *playback.Queue
	metrics    *metrics.Metrics
	clk        clock.Clock
	logger     *slog.Logger

	onRecord func(sessionID string, index int, record sentence.Record)

	sampleInterval time.Duration
	flushEvery     time.Duration

	// segmentCh serializes accumulator access: dispatch goroutines publish
	// responses here and exactly one apply loop consumes them.
	segmentCh chan *dispatch.Segment
	// speakCh holds at most the newest translation awaiting playback; speak
	// replaces its content and preempts the clip already playing.
	speakCh chan string

	ctx    context.Context
	cancel context.CancelFunc

	// Teardown joins these in order: timer loops first (they are the only
	// source of new dispatches), then in-flight dispatches, then the apply
	// loop, then playback.
	timerWG    sync.WaitGroup
	dispatchWG sync.WaitGroup
	applyWG    sync.WaitGroup
	playbackWG sync.WaitGroup

	window []float64

	// spoken tracks translation text already played incrementally for the
	// open sentence, so finalization does not replay it.
	spokenMu sync.Mutex
	spoken   string

	stopOnce sync.Once
}

func (s *Session) start() {
	s.detector.Start()

	s.timerWG.Add(2)
	go s.sampleLoop()
	go s.flushLoop()

	s.applyWG.Add(1)
	go s.applyLoop()

	if s.player != nil {
		s.playbackWG.Add(1)
		go s.playbackLoop()
	}
}

// sampleLoop runs the VAD on its fixed cadence and turns silence timeouts
// into immediate flushes.
func (s *Session) sampleLoop() {
	defer s.timerWG.Done()

	ticker := s.clk.NewTicker(s.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C():
		}

		n := s.stream.AnalysisWindow(s.window)
		if n == 0 {
			continue
		}

		tick, err := s.detector.Sample(s.window[:n])
		if err != nil {
			s.logger.Warn("VAD sample failed", slog.String("error", err.Error()))
			continue
		}

		if s.metrics != nil {
			s.metrics.RecordVADTick(tick.Speaking, tick.NoiseFloor)
		}

		if tick.SilenceTimeout {
			if s.metrics != nil {
				s.metrics.RecordSilenceTimeout()
			}
			s.flush(true)
		}
	}
}

// flushLoop drives the fixed-cadence recorder flush.
func (s *Session) flushLoop() {
	defer s.timerWG.Done()

	ticker := s.clk.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C():
			s.flush(false)
		}
	}
}

// flush asks the recorder for a chunk and dispatches it asynchronously so
// network latency never blocks the capture timers.
func (s *Session) flush(silence bool) {
	chunk, err := s.rec.Flush(silence)

	if silence {
		// The latch clears once the requested flush has been performed,
		// whether or not a chunk went out.
		s.detector.FlushSatisfied()
	}

	if err != nil {
		s.logger.Warn("Recorder flush failed", slog.String("error", err.Error()))
		return
	}

	if chunk == nil {
		if s.metrics != nil {
			s.metrics.RecordChunkRebuffered()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordChunkEmitted(chunk.Duration.Seconds(), len(chunk.Data))
	}

	s.dispatchWG.Add(1)
	go s.dispatchChunk(chunk)
}

// dispatchChunk repairs one chunk, sends it, and publishes the response to
// the apply loop. Failures discard the chunk; the next one carries forward.
func (s *Session) dispatchChunk(chunk *recorder.Chunk) {
	defer s.dispatchWG.Done()

	repaired, format, err := s.repairer.Repair(chunk.Data, chunk.MediaType)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordRepairFailure()
		}
		s.logger.Warn("Chunk repair failed, discarding",
			slog.Uint64("seq", chunk.Seq),
			slog.String("error", err.Error()),
		)
		s.scheduleRestart(chunk.MediaType)
		return
	}
	if len(repaired) > len(chunk.Data) && s.metrics != nil {
		s.metrics.RecordRepair(false, true)
	}
	chunk.Data = repaired

	if s.metrics != nil {
		s.metrics.RecordDispatchRequest()
	}

	startTime := time.Now()
	segment, err := s.dispatcher.Dispatch(s.ctx, chunk)
	elapsed := time.Since(startTime)

	// Hard-restart container types rebuild the session after every upload,
	// success or not.
	s.scheduleRestart(chunk.MediaType)

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordDispatchFailure(elapsed.Seconds())
		}

		if errors.Is(err, dispatch.ErrNoTranslationBackend) {
			s.logger.Error("No translation backend configured, translations will keep failing",
				slog.Uint64("seq", chunk.Seq),
			)
		} else if !errors.Is(err, context.Canceled) {
			s.logger.Warn("Dispatch failed, chunk discarded",
				slog.Uint64("seq", chunk.Seq),
				slog.String("format", format.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordDispatchSuccess(elapsed.Seconds())
	}

	select {
	case s.segmentCh <- segment:
	case <-s.ctx.Done():
	}
}

// scheduleRestart rebuilds the recorder session when the container type (or
// configuration) requires it.
func (s *Session) scheduleRestart(mediaType string) {
	if !s.rec.RestartAfterDispatch(container.RequiresRestart(mediaType)) {
		return
	}

	if err := s.rec.Restart(); err != nil {
		s.logger.Error("Recorder restart failed", slog.String("error", err.Error()))
		return
	}

	// A fresh encoder session means a fresh header.
	s.repairer.Reset()

	if s.metrics != nil {
		s.metrics.RecordRecorderRestart()
	}
}

// applyLoop merges dispatcher responses into the accumulator one at a time,
// in arrival order.
func (s *Session) applyLoop() {
	defer s.applyWG.Done()

	for segment := range s.segmentCh {
		s.applySegment(segment)
	}
}

func (s *Session) applySegment(segment *dispatch.Segment) {
	outcome := s.acc.Apply(segment)

	if s.metrics != nil {
		s.metrics.RecordSegment(outcome.Duplicate)
	}

	if outcome.PlaybackText != "" {
		s.speakIncrement(outcome.PlaybackText)
	}

	if outcome.Finalized != nil {
		s.finalizeRecord(outcome.Finalized)
	}
}

// speakIncrement plays new translation text as soon as it arrives, so the
// user hears progress before the sentence closes.
func (s *Session) speakIncrement(text string) {
	s.spokenMu.Lock()
	s.spoken = sentence.JoinText(s.spoken, text)
	s.spokenMu.Unlock()

	s.speak(text)
}

func (s *Session) finalizeRecord(record *sentence.Record) {
	if s.metrics != nil {
		s.metrics.RecordSentenceFinalized()
	}

	s.spokenMu.Lock()
	spoken := s.spoken
	s.spoken = ""
	s.spokenMu.Unlock()

	// The finalized translation is played exactly once. When the incremental
	// path already delivered the same text, replaying it would stutter.
	if record.Translation != "" && record.Translation != spoken {
		s.speak(record.Translation)
	}

	if s.onRecord != nil {
		s.onRecord(s.ID, len(s.acc.Records()), *record)
	}
}

func (s *Session) speak(text string) {
	if s.player == nil {
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPlaybackRequest()
	}

	// Latest wins: a queued clip that never started is replaced outright.
	select {
	case s.speakCh <- text:
	default:
		select {
		case <-s.speakCh:
		default:
		}
		select {
		case s.speakCh <- text:
		default:
		}
	}

	// The clip already playing is stale now; stop it so the playback loop
	// moves on to the replacement immediately.
	s.player.Stop()
}

// playbackLoop plays queued translations one at a time. Because speak
// replaces the queued clip and stops the playing one, the loop converges
// on the newest translation without ever blocking the apply loop.
func (s *Session) playbackLoop() {
	defer s.playbackWG.Done()

	for text := range s.speakCh {
		if err := s.player.Speak(s.ctx, text); err != nil {
			if s.metrics != nil {
				if errors.Is(err, playback.ErrAutoplayBlocked) {
					s.metrics.RecordPlaybackBlocked()
				} else {
					s.metrics.RecordPlaybackFailure()
				}
			}
		}
	}
}

// stop tears the session down: timers stop, in-flight dispatches drain into
// the accumulator, buffered undispatched audio is discarded, and the pending
// sentence is force-finalized.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		s.cancel()

		// Timer loops are joined first so no further flush can register a
		// dispatch while dispatchWG drains.
		s.timerWG.Wait()
		s.dispatchWG.Wait()
		close(s.segmentCh)
		s.applyWG.Wait()

		if err := s.rec.Stop(); err != nil {
			s.logger.Warn("Recorder stop failed", slog.String("error", err.Error()))
		}

		if record := s.acc.Finalize(); record != nil {
			s.finalizeRecord(record)
		}

		if s.player != nil {
			close(s.speakCh)
			s.player.Stop()
			s.playbackWG.Wait()
			s.player.Stop()
		}

		if err := s.stream.Close(); err != nil {
			s.logger.Warn("Stream close failed", slog.String("error", err.Error()))
		}
	})
}

// Records returns the finalized transcript so far.
func (s *Session) Records() []sentence.Record {
	return s.acc.Records()
}
