package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
)

// ErrAutoplayBlocked indicates the player refused to start because audio
// output has not been unlocked by a user gesture yet. The only retryable
// playback error.
var ErrAutoplayBlocked = errors.New("playback blocked by autoplay policy")

// Player plays one audio payload at a time. Play replaces whatever is
// currently playing.
type Player interface {
	Play(data []byte) error
	Stop()
}

// UnlockState tracks autoplay unlock progress.
type UnlockState int

const (
	UnlockLocked UnlockState = iota
	UnlockUnlocking
	UnlockUnlocked
)

// String returns a human-readable unlock state name.
func (s UnlockState) String() string {
	switch s {
	case UnlockUnlocking:
		return "unlocking"
	case UnlockUnlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

// maxBlockedRetries bounds retries after an autoplay block. Other playback
// failures are never retried.
const maxBlockedRetries = 2

// retryBackoff is the pause before a blocked play attempt is repeated.
const retryBackoff = 250 * time.Millisecond

// Stats represents playback statistics.
type Stats struct {
	UnlockState     string `json:"unlock_state"`
	SpeakRequests   uint64 `json:"speak_requests"`
	PlaysStarted    uint64 `json:"plays_started"`
	PlaysBlocked    uint64 `json:"plays_blocked"`
	PlaybackErrors  uint64 `json:"playback_errors"`
	SynthesisErrors uint64 `json:"synthesis_errors"`
}

// Queue fetches synthesized speech and plays it back. Requests are strictly
// replace-on-arrival: stale audio is stopped, never queued behind.
type Queue struct {
	synth  *SynthClient
	player Player
	clk    clock.Clock
	logger *slog.Logger

	unlockState UnlockState

	speakRequests   uint64
	playsStarted    uint64
	playsBlocked    uint64
	playbackErrors  uint64
	synthesisErrors uint64

	mu sync.Mutex
}

// NewQueue creates a playback queue. The player starts locked until Unlock
// succeeds or a play attempt goes through on its own.
func NewQueue(synth *SynthClient, player Player, clk clock.Clock, logger *slog.Logger) (*Queue, error) {
	if synth == nil {
		return nil, fmt.Errorf("synth client cannot be nil")
	}

	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}

	if clk == nil {
		clk = clock.System()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		synth:       synth,
		player:      player,
		clk:         clk,
		logger:      logger,
		unlockState: UnlockLocked,
	}, nil
}

// Unlock plays a minimal near-silent sample to satisfy autoplay policies.
// Called once at session start, before any real playback is needed.
func (q *Queue) Unlock(ctx context.Context) error {
	q.mu.Lock()
	if q.unlockState == UnlockUnlocked {
		q.mu.Unlock()
		return nil
	}
	q.unlockState = UnlockUnlocking
	q.mu.Unlock()

	sample, err := SilentSample()
	if err != nil {
		return fmt.Errorf("failed to generate unlock sample: %w", err)
	}

	if err := q.playWithRetry(ctx, sample); err != nil {
		q.mu.Lock()
		q.unlockState = UnlockLocked
		q.mu.Unlock()
		return fmt.Errorf("autoplay unlock failed: %w", err)
	}

	q.mu.Lock()
	q.unlockState = UnlockUnlocked
	q.mu.Unlock()

	q.logger.Debug("Autoplay unlocked")
	return nil
}

// Speak synthesizes text and plays it, replacing any current playback.
// Synthesis failures are logged and dropped; only autoplay blocks retry.
func (q *Queue) Speak(ctx context.Context, text string) error {
	q.mu.Lock()
	q.speakRequests++
	q.mu.Unlock()

	audio, err := q.synth.Synthesize(ctx, text)
	if err != nil {
		q.mu.Lock()
		q.synthesisErrors++
		q.mu.Unlock()

		q.logger.Warn("Synthesis failed", slog.String("error", err.Error()))
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := q.playWithRetry(ctx, audio); err != nil {
		return err
	}

	// A play that went through proves the output is unlocked, whatever
	// state the explicit unlock left behind.
	q.mu.Lock()
	q.unlockState = UnlockUnlocked
	q.mu.Unlock()

	return nil
}

// playWithRetry stops the current audio and starts the new payload,
// retrying a bounded number of times when blocked by autoplay policy.
func (q *Queue) playWithRetry(ctx context.Context, data []byte) error {
	var lastErr error

	for attempt := 0; attempt <= maxBlockedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-q.clk.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		q.player.Stop()
		err := q.player.Play(data)
		if err == nil {
			q.mu.Lock()
			q.playsStarted++
			q.mu.Unlock()
			return nil
		}

		lastErr = err

		if !errors.Is(err, ErrAutoplayBlocked) {
			q.mu.Lock()
			q.playbackErrors++
			q.mu.Unlock()

			q.logger.Warn("Playback failed", slog.String("error", err.Error()))
			return err
		}

		q.mu.Lock()
		q.playsBlocked++
		q.mu.Unlock()
	}

	return fmt.Errorf("playback blocked after %d attempts: %w", maxBlockedRetries+1, lastErr)
}

// Stop halts any current playback.
func (q *Queue) Stop() {
	q.player.Stop()
}

// State returns the current unlock state.
func (q *Queue) State() UnlockState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unlockState
}

// GetStats returns current playback statistics.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		UnlockState:     q.unlockState.String(),
		SpeakRequests:   q.speakRequests,
		PlaysStarted:    q.playsStarted,
		PlaysBlocked:    q.playsBlocked,
		PlaybackErrors:  q.playbackErrors,
		SynthesisErrors: q.synthesisErrors,
	}
}

// SilentSample returns a tiny WAV payload with near-zero amplitude, short
// enough to be inaudible but long enough for players to accept it.
func SilentSample() ([]byte, error) {
	const sampleRate = 8000
	samples := make([]int16, sampleRate/100) // 10ms

	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1
		} else {
			samples[i] = -1
		}
	}

	return capture.EncodeWAV(samples, sampleRate)
}
