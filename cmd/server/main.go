package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/config"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/dispatch"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/metrics"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/playback"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/recorder"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/server"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/session"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/transcript"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-translator-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// A .env file can carry deployment overrides; absence is fine.
	godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	autostart := flag.Bool("autostart", false, "Start a capture session immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyEnvOverrides(cfg)

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("dispatch_endpoint", cfg.Dispatch.Endpoint),
		slog.String("source_language", cfg.Dispatch.SourceLanguage),
		slog.String("target_language", cfg.Dispatch.TargetLanguage),
		slog.Bool("playback_enabled", cfg.Playback.Enabled),
		slog.Bool("synthetic_capture", cfg.Capture.Synthetic),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()

	var store *transcript.Store
	if cfg.Transcript.DatabasePath != "" {
		store, err = transcript.OpenStore(cfg.Transcript.DatabasePath)
		if err != nil {
			logger.Error("Failed to open transcript store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		logger.Error("Failed to create capture provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dispatcher, err := dispatch.NewClient(dispatch.Config{
		Endpoint:        cfg.Dispatch.Endpoint,
		Timeout:         cfg.Dispatch.GetTimeoutDuration(),
		MaxConcurrent:   cfg.Dispatch.MaxConcurrent,
		SourceLanguage:  cfg.Dispatch.SourceLanguage,
		TargetLanguage:  cfg.Dispatch.TargetLanguage,
		InterpreterLang: cfg.Dispatch.InterpreterLang,
		TextOnly:        cfg.Dispatch.TextOnly,
	})
	if err != nil {
		logger.Error("Failed to create dispatcher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	player, err := buildPlayer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create playback queue", slog.String("error", err.Error()))
		os.Exit(1)
	}

	manager, err := session.NewManager(session.ManagerConfig{
		VAD:            buildVADConfig(cfg.VAD),
		Recorder:       buildRecorderConfig(cfg.Recorder),
		Provider:       provider,
		Dispatcher:     dispatcher,
		Player:         player,
		Store:          store,
		Metrics:        appMetrics,
		Logger:         logger,
		ExportDir:      cfg.Transcript.ExportDir,
		FilenamePrefix: cfg.Transcript.FilenamePrefix,
	})
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, manager, store, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	if *autostart {
		if _, err := manager.Start(cfg.Capture.DeviceID); err != nil {
			logger.Error("Failed to start capture session", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := manager.Close(); err != nil {
		logger.Error("Error stopping session", slog.String("error", err.Error()))
	}

	info := manager.Info()
	logger.Info("Final session statistics",
		slog.String("session_id", info.SessionID),
		slog.Int("sentences", info.Sentences),
	)

	logger.Info("Service stopped")
}

// applyEnvOverrides lets the environment point the service at alternate
// backends without editing the config file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("TRANSLATOR_DISPATCH_ENDPOINT"); v != "" {
		cfg.Dispatch.Endpoint = v
	}
	if v := os.Getenv("TRANSLATOR_SPEAK_ENDPOINT"); v != "" {
		cfg.Playback.Endpoint = v
	}
}

func buildProvider(cfg *config.Config) (capture.Provider, error) {
	if cfg.Capture.Synthetic {
		return capture.NewSyntheticProvider(), nil
	}
	return capture.NewALSAProvider(cfg.Capture.SampleRate, cfg.VAD.WindowSize)
}

func buildPlayer(cfg *config.Config, logger *slog.Logger) (*playback.Queue, error) {
	if !cfg.Playback.Enabled {
		return nil, nil
	}

	synth, err := playback.NewSynthClient(playback.SynthConfig{
		Endpoint: cfg.Playback.Endpoint,
		Language: cfg.Playback.Language,
		Timeout:  cfg.Playback.GetTimeoutDuration(),
	})
	if err != nil {
		return nil, err
	}

	player, err := playback.NewCommandPlayer(cfg.Playback.PlayerCommand)
	if err != nil {
		return nil, err
	}

	return playback.NewQueue(synth, player, nil, logger)
}

func buildVADConfig(cfg config.VADConfig) vad.Config {
	c := vad.DefaultConfig()
	c.SampleInterval = cfg.GetSampleInterval()
	c.WindowSize = cfg.WindowSize
	c.InitialNoiseFloor = cfg.InitialNoiseFloor
	c.FloorMin = cfg.MinNoiseFloor
	c.ThresholdMin = cfg.MinThreshold
	c.ThresholdOffset = cfg.ThresholdMargin
	c.ThresholdRatio = cfg.ThresholdFactor
	c.WarmupPeriod = cfg.GetWarmup()
	c.SilenceTimeout = cfg.GetSilenceTimeout()
	return c
}

func buildRecorderConfig(cfg config.RecorderConfig) recorder.Config {
	return recorder.Config{
		FlushInterval:       cfg.GetFlushInterval(),
		MinDispatchBytes:    cfg.MinDispatchBytes,
		MinDispatchDuration: cfg.GetMinDispatchDuration(),
		MaxBufferedDuration: cfg.GetMaxBufferedDuration(),
		AlwaysRestart:       cfg.AlwaysRestart,
	}
}

// initLogger creates the structured logger from the logging configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
