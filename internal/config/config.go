package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	VAD        VADConfig        `yaml:"vad"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Transcript TranscriptConfig `yaml:"transcript"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CaptureConfig contains audio capture configuration.
type CaptureConfig struct {
	DeviceID   string `yaml:"device_id"` // empty selects the default device
	SampleRate int    `yaml:"sample_rate"`
	Synthetic  bool   `yaml:"synthetic"` // use the in-process tone generator
}

// VADConfig contains voice activity detection parameters.
type VADConfig struct {
	SampleIntervalMs  int     `yaml:"sample_interval_ms"`
	WindowSize        int     `yaml:"window_size"` // samples
	InitialNoiseFloor float64 `yaml:"initial_noise_floor"`
	MinNoiseFloor     float64 `yaml:"min_noise_floor"`
	MinThreshold      float64 `yaml:"min_threshold"`
	ThresholdMargin   float64 `yaml:"threshold_margin"`
	ThresholdFactor   float64 `yaml:"threshold_factor"`
	WarmupMs          int     `yaml:"warmup_ms"`
	SilenceTimeoutMs  int     `yaml:"silence_timeout_ms"`
}

// RecorderConfig contains chunk recorder thresholds.
type RecorderConfig struct {
	FlushIntervalMs       int  `yaml:"flush_interval_ms"`
	MinDispatchBytes      int  `yaml:"min_dispatch_bytes"`
	MinDispatchDurationMs int  `yaml:"min_dispatch_duration_ms"`
	MaxBufferedDurationMs int  `yaml:"max_buffered_duration_ms"`
	AlwaysRestart         bool `yaml:"always_restart"`
}

// DispatchConfig contains translation backend configuration.
type DispatchConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Timeout         int    `yaml:"timeout"` // seconds
	MaxConcurrent   int    `yaml:"max_concurrent"`
	SourceLanguage  string `yaml:"source_language"`
	TargetLanguage  string `yaml:"target_language"`
	InterpreterLang string `yaml:"interpreter_lang"`
	TextOnly        bool   `yaml:"text_only"`
}

// PlaybackConfig contains synthesis and playback configuration.
type PlaybackConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"`        // seconds
	PlayerCommand string `yaml:"player_command"` // empty selects aplay
}

// TranscriptConfig contains transcript export and persistence configuration.
type TranscriptConfig struct {
	ExportDir      string `yaml:"export_dir"`
	DatabasePath   string `yaml:"database_path"`
	FilenamePrefix string `yaml:"filename_prefix"`
}

// HTTPConfig contains HTTP API server configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("recorder config: %w", err)
	}

	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Transcript.Validate(); err != nil {
		return fmt.Errorf("transcript config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration.
func (c *CaptureConfig) Validate() error {
	if c.SampleRate != 8000 && c.SampleRate != 16000 && c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample_rate must be one of [8000, 16000, 44100, 48000], got %d", c.SampleRate)
	}

	return nil
}

// Validate validates VAD configuration.
func (v *VADConfig) Validate() error {
	if v.SampleIntervalMs < 10 {
		return fmt.Errorf("sample_interval_ms must be at least 10, got %d", v.SampleIntervalMs)
	}

	if v.WindowSize < 256 || v.WindowSize > 8192 {
		return fmt.Errorf("window_size must be between 256 and 8192 samples, got %d", v.WindowSize)
	}

	if v.InitialNoiseFloor <= 0 || v.InitialNoiseFloor > 1 {
		return fmt.Errorf("initial_noise_floor must be in (0, 1], got %f", v.InitialNoiseFloor)
	}

	if v.MinNoiseFloor <= 0 || v.MinNoiseFloor > v.InitialNoiseFloor {
		return fmt.Errorf("min_noise_floor must be in (0, initial_noise_floor], got %f", v.MinNoiseFloor)
	}

	if v.MinThreshold <= 0 {
		return fmt.Errorf("min_threshold must be positive, got %f", v.MinThreshold)
	}

	if v.ThresholdMargin <= 0 {
		return fmt.Errorf("threshold_margin must be positive, got %f", v.ThresholdMargin)
	}

	if v.ThresholdFactor <= 1 {
		return fmt.Errorf("threshold_factor must be greater than 1, got %f", v.ThresholdFactor)
	}

	if v.WarmupMs < 0 {
		return fmt.Errorf("warmup_ms cannot be negative, got %d", v.WarmupMs)
	}

	if v.SilenceTimeoutMs < v.SampleIntervalMs {
		return fmt.Errorf("silence_timeout_ms (%d) must be at least sample_interval_ms (%d)",
			v.SilenceTimeoutMs, v.SampleIntervalMs)
	}

	return nil
}

// Validate validates recorder configuration.
func (r *RecorderConfig) Validate() error {
	if r.FlushIntervalMs < 100 {
		return fmt.Errorf("flush_interval_ms must be at least 100, got %d", r.FlushIntervalMs)
	}

	if r.MinDispatchBytes < 1 {
		return fmt.Errorf("min_dispatch_bytes must be positive, got %d", r.MinDispatchBytes)
	}

	if r.MinDispatchDurationMs < 1 {
		return fmt.Errorf("min_dispatch_duration_ms must be positive, got %d", r.MinDispatchDurationMs)
	}

	if r.MaxBufferedDurationMs <= r.MinDispatchDurationMs {
		return fmt.Errorf("max_buffered_duration_ms (%d) must be greater than min_dispatch_duration_ms (%d)",
			r.MaxBufferedDurationMs, r.MinDispatchDurationMs)
	}

	return nil
}

// Validate validates dispatch configuration.
func (d *DispatchConfig) Validate() error {
	if d.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", d.Timeout)
	}

	if d.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", d.MaxConcurrent)
	}

	if d.SourceLanguage == "" {
		return fmt.Errorf("source_language cannot be empty")
	}

	if d.TargetLanguage == "" {
		return fmt.Errorf("target_language cannot be empty")
	}

	return nil
}

// Validate validates playback configuration.
func (p *PlaybackConfig) Validate() error {
	if p.Enabled {
		if p.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty when playback is enabled")
		}

		if p.Timeout < 1 {
			return fmt.Errorf("timeout must be at least 1 second, got %d", p.Timeout)
		}
	}

	return nil
}

// Validate validates transcript configuration.
func (t *TranscriptConfig) Validate() error {
	if t.ExportDir == "" {
		return fmt.Errorf("export_dir cannot be empty")
	}

	if t.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSampleInterval returns the VAD sampling interval as a time.Duration.
func (v *VADConfig) GetSampleInterval() time.Duration {
	return time.Duration(v.SampleIntervalMs) * time.Millisecond
}

// GetWarmup returns the calibration warm-up as a time.Duration.
func (v *VADConfig) GetWarmup() time.Duration {
	return time.Duration(v.WarmupMs) * time.Millisecond
}

// GetSilenceTimeout returns the silence timeout as a time.Duration.
func (v *VADConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(v.SilenceTimeoutMs) * time.Millisecond
}

// GetFlushInterval returns the flush cadence as a time.Duration.
func (r *RecorderConfig) GetFlushInterval() time.Duration {
	return time.Duration(r.FlushIntervalMs) * time.Millisecond
}

// GetMinDispatchDuration returns the dispatch duration gate as a time.Duration.
func (r *RecorderConfig) GetMinDispatchDuration() time.Duration {
	return time.Duration(r.MinDispatchDurationMs) * time.Millisecond
}

// GetMaxBufferedDuration returns the hard buffering cap as a time.Duration.
func (r *RecorderConfig) GetMaxBufferedDuration() time.Duration {
	return time.Duration(r.MaxBufferedDurationMs) * time.Millisecond
}

// GetTimeoutDuration returns the dispatch timeout as a time.Duration.
func (d *DispatchConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// GetTimeoutDuration returns the synthesis timeout as a time.Duration.
func (p *PlaybackConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}
