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

	"github.com/soundscribe/live-transcribe/internal/capture"
	"github.com/soundscribe/live-transcribe/internal/config"
	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/metrics"
	"github.com/soundscribe/live-transcribe/internal/pipeline"
	"github.com/soundscribe/live-transcribe/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-transcribe"
	serviceVersion    = "1.0.0"

	// Environment override for the inference API key, so the secret can
	// stay out of the config file.
	apiKeyEnv = "TRANSCRIBE_API_KEY"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load optional .env before reading the environment
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.Inference.APIKey = key
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("capture_source", cfg.Capture.Source),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("channels", cfg.Audio.Channels),
		slog.Float64("window_seconds", cfg.Audio.WindowSeconds),
		slog.String("inference_endpoint", cfg.Inference.Endpoint),
		slog.Bool("vad_gate", cfg.VAD.GateEnabled),
		slog.Any("output_formats", cfg.Output.Formats),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Initialize inference engine
	eng, err := engine.NewHTTPEngine(engine.Config{
		Endpoint:   cfg.Inference.Endpoint,
		APIKey:     cfg.Inference.APIKey,
		Model:      cfg.Inference.Model,
		Timeout:    cfg.Inference.RequestTimeout(),
		MaxRetries: cfg.Inference.MaxRetries,
		SampleRate: cfg.Audio.SampleRate,
	})
	if err != nil {
		logger.Error("Failed to create inference engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Select capture source
	var source capture.Source
	switch cfg.Capture.Source {
	case "udp":
		source = capture.NewUDPSource(logger, capture.UDPConfig{
			BindAddress: cfg.Capture.UDP.BindAddress,
			Port:        cfg.Capture.UDP.Port,
			BufferSize:  cfg.Capture.UDP.BufferSize,
		})
	case "file":
		source = capture.NewFileSource(logger, cfg.Capture.File.Path, cfg.Capture.File.Realtime)
	default:
		logger.Error("Unknown capture source", slog.String("source", cfg.Capture.Source))
		os.Exit(1)
	}

	// Assemble pipeline
	p, err := pipeline.New(cfg, logger, appMetrics, source, eng)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start status server (if enabled)
	var statusServer *server.StatusServer
	if cfg.Status.Enabled {
		statusServer = server.NewStatusServer(cfg.Status.Addr(), logger, func() any {
			return p.GetStats()
		})
		statusServer.Start()
	}

	// Run until interrupted or the source drains
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := p.Run(ctx)

	// Stop status server
	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := statusServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping status server", slog.String("error", err.Error()))
		}
	}

	if err := eng.Close(); err != nil {
		logger.Error("Error closing inference engine", slog.String("error", err.Error()))
	}

	if runErr != nil {
		logger.Error("Pipeline failed", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
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

	// Console rendering owns stdout, so logs default to stderr.
	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
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
