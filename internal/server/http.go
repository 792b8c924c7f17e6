package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsFunc returns the current statistics snapshot rendered at /stats.
type StatsFunc func() any

// StatusServer serves the monitoring endpoints.
type StatusServer struct {
	server    *http.Server
	logger    *slog.Logger
	stats     StatsFunc
	startTime time.Time
}

// NewStatusServer creates a status server bound to addr.
func NewStatusServer(addr string, logger *slog.Logger, stats StatsFunc) *StatusServer {
	s := &StatusServer{
		logger:    logger,
		stats:     stats,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *StatusServer) Start() {
	go func() {
		s.logger.Info("Status server started", slog.String("address", s.server.Addr))

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status server failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *StatusServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping status server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	return nil
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":         "healthy",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *StatusServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.stats())
}

func (s *StatusServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}
