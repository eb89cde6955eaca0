package vad

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/clock"
)

// Config contains detector tuning parameters.
type Config struct {
	SampleInterval time.Duration // cadence of amplitude sampling
	WindowSize     int           // samples per analysis window

	InitialNoiseFloor float64 // noise floor at session start
	FloorMin          float64 // lower bound for the adapted floor
	FloorSmoothing    float64 // weight of the previous floor in the EMA

	ThresholdMin    float64 // absolute lower bound for the speech threshold
	ThresholdOffset float64 // additive margin above the floor
	ThresholdRatio  float64 // multiplicative margin above the floor

	WarmupPeriod   time.Duration // calibration window after Start
	SilenceTimeout time.Duration // silence duration that requests a flush
}

// DefaultConfig returns the detector parameters used by the live pipeline.
func DefaultConfig() Config {
	return Config{
		SampleInterval:    150 * time.Millisecond,
		WindowSize:        1024,
		InitialNoiseFloor: 0.005,
		FloorMin:          0.001,
		FloorSmoothing:    0.95,
		ThresholdMin:      0.0025,
		ThresholdOffset:   0.0015,
		ThresholdRatio:    2.2,
		WarmupPeriod:      1200 * time.Millisecond,
		SilenceTimeout:    1400 * time.Millisecond,
	}
}

// Tick is the outcome of one detector sample.
type Tick struct {
	RMS            float64   `json:"rms"`
	NoiseFloor     float64   `json:"noise_floor"`
	Threshold      float64   `json:"threshold"`
	Speaking       bool      `json:"speaking"`
	Warmup         bool      `json:"warmup"`
	SilenceTimeout bool      `json:"silence_timeout"`
	Timestamp      time.Time `json:"timestamp"`
}

// Stats represents detector statistics.
type Stats struct {
	TotalTicks      uint64    `json:"total_ticks"`
	SpeakingTicks   uint64    `json:"speaking_ticks"`
	SilenceTimeouts uint64    `json:"silence_timeouts"`
	NoiseFloor      float64   `json:"noise_floor"`
	Threshold       float64   `json:"threshold"`
	LastSpeech      time.Time `json:"last_speech"`
}

// Detector classifies amplitude windows as speech or silence.
//
// The noise floor adapts by exponential smoothing on non-speech ticks only,
// so sustained speech cannot drag the floor upward. A silence timeout is
// latched: once raised it will not fire again until FlushSatisfied is called.
type Detector struct {
	config Config
	clk    clock.Clock

	started    bool
	startTime  time.Time
	floor      float64
	speaking   bool
	lastSpeech time.Time

	flushRequested bool

	totalTicks      uint64
	speakingTicks   uint64
	silenceTimeouts uint64

	mu sync.RWMutex
}

// NewDetector creates a detector with the given configuration.
func NewDetector(config Config, clk clock.Clock) (*Detector, error) {
	if config.SampleInterval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %v", config.SampleInterval)
	}

	if config.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", config.WindowSize)
	}

	if config.FloorSmoothing < 0 || config.FloorSmoothing >= 1 {
		return nil, fmt.Errorf("floor smoothing must be in [0, 1), got %f", config.FloorSmoothing)
	}

	if config.SilenceTimeout <= 0 {
		return nil, fmt.Errorf("silence timeout must be positive, got %v", config.SilenceTimeout)
	}

	if clk == nil {
		clk = clock.System()
	}

	return &Detector{
		config: config,
		clk:    clk,
		floor:  config.InitialNoiseFloor,
	}, nil
}

// Start begins a detection session. It resets all adaptive state.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clk.Now()
	d.started = true
	d.startTime = now
	d.floor = d.config.InitialNoiseFloor
	d.speaking = false
	d.lastSpeech = now
	d.flushRequested = false
	d.totalTicks = 0
	d.speakingTicks = 0
	d.silenceTimeouts = 0
}

// Sample processes one time-domain window and returns the classification.
// Samples are expected to be normalized to [-1, 1].
func (d *Detector) Sample(window []float64) (Tick, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return Tick{}, fmt.Errorf("detector not started")
	}

	if len(window) == 0 {
		return Tick{}, fmt.Errorf("empty analysis window")
	}

	now := d.clk.Now()
	rms := RMS(window)
	warmup := now.Sub(d.startTime) < d.config.WarmupPeriod

	threshold := d.threshold()
	speaking := rms > threshold

	// The floor only follows ambient noise. Speech ticks leave it untouched.
	if !speaking {
		floor := d.config.FloorSmoothing*d.floor + (1-d.config.FloorSmoothing)*rms
		d.floor = math.Max(d.config.FloorMin, floor)
	}

	if warmup {
		// Calibration window: keep adapting the floor but suppress state
		// transitions and timeouts.
		speaking = false
	}

	if speaking {
		d.lastSpeech = now
	}
	d.speaking = speaking

	tick := Tick{
		RMS:        rms,
		NoiseFloor: d.floor,
		Threshold:  threshold,
		Speaking:   speaking,
		Warmup:     warmup,
		Timestamp:  now,
	}

	if !warmup && !speaking && !d.flushRequested &&
		now.Sub(d.lastSpeech) >= d.config.SilenceTimeout {
		d.flushRequested = true
		d.silenceTimeouts++
		tick.SilenceTimeout = true
	}

	d.totalTicks++
	if speaking {
		d.speakingTicks++
	}

	return tick, nil
}

// FlushSatisfied clears the silence-timeout latch after the requested flush
// has been performed, re-arming the timeout for the next silence interval.
func (d *Detector) FlushSatisfied() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.flushRequested = false
	// Restart the silence interval so one long pause cannot immediately
	// re-trigger after the latch clears.
	d.lastSpeech = d.clk.Now()
}

// Speaking reports whether the most recent tick was classified as speech.
func (d *Detector) Speaking() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.speaking
}

// LastSpeech returns the timestamp of the most recent speech tick.
func (d *Detector) LastSpeech() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSpeech
}

// NoiseFloor returns the current adapted noise floor.
func (d *Detector) NoiseFloor() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.floor
}

// GetStats returns current detector statistics.
func (d *Detector) GetStats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		TotalTicks:      d.totalTicks,
		SpeakingTicks:   d.speakingTicks,
		SilenceTimeouts: d.silenceTimeouts,
		NoiseFloor:      d.floor,
		Threshold:       d.threshold(),
		LastSpeech:      d.lastSpeech,
	}
}

// threshold computes the adaptive speech threshold. Callers must hold d.mu.
func (d *Detector) threshold() float64 {
	t := d.config.ThresholdMin
	if v := d.floor + d.config.ThresholdOffset; v > t {
		t = v
	}
	if v := d.floor * d.config.ThresholdRatio; v > t {
		t = v
	}
	return t
}

// RMS computes the root-mean-square amplitude of a time-domain window.
func RMS(window []float64) float64 {
	var energy float64
	for _, s := range window {
		energy += s * s
	}
	return math.Sqrt(energy / float64(len(window)))
}
