package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/config"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/metrics"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/session"
	"github.com/KaatCAIBXL/video-translator-sub000/internal/transcript"
)

// HTTPServer provides the HTTP control and monitoring API.
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	manager *session.Manager
	store   *transcript.Store
	metrics *metrics.Metrics
	hub     *Hub

	startTime time.Time
}

// NewHTTPServer creates the HTTP API server and subscribes its WebSocket
// hub to the session manager's finalized sentences.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, manager *session.Manager, store *transcript.Store, m *metrics.Metrics) *HTTPServer {

	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		manager:   manager,
		store:     store,
		metrics:   m,
		hub:       NewHub(logger),
		startTime: time.Now(),
	}

	manager.OnRecord(h.hub.BroadcastRecord)

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/api/v1/status", h.withMetrics("/api/v1/status", h.handleStatus))
	mux.HandleFunc("/api/v1/devices", h.withMetrics("/api/v1/devices", h.handleDevices))
	mux.HandleFunc("/api/v1/session/start", h.withMetrics("/api/v1/session/start", h.handleSessionStart))
	mux.HandleFunc("/api/v1/session/stop", h.withMetrics("/api/v1/session/stop", h.handleSessionStop))
	mux.HandleFunc("/api/v1/transcript", h.withMetrics("/api/v1/transcript", h.handleTranscript))
	mux.HandleFunc("/api/v1/transcript/export", h.withMetrics("/api/v1/transcript/export", h.handleTranscriptExport))
	mux.HandleFunc("/api/v1/sessions", h.withMetrics("/api/v1/sessions", h.handleStoredSessions))

	// WebSocket feed of finalized sentences (no metrics wrapper, the
	// connection is long-lived).
	mux.HandleFunc("/ws/transcript", h.hub.HandleWebSocket)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

			if ww.statusCode >= 400 {
				errorType := "client_error"
				if ww.statusCode >= 500 {
					errorType = "server_error"
				}
				h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
			}
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.hub.Close()
	return h.server.Shutdown(ctx)
}

// Handler returns the server's HTTP handler. Used by tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// handleHealth implements the /health endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := h.manager.Info()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "live-translator-service",
			"version": "1.0.0",
		},
		"session": info,
	}

	writeJSON(w, health)
}

// handleStatus implements the /api/v1/status endpoint.
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.manager.Info())
}

// handleDevices implements the /api/v1/devices endpoint.
func (h *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := h.manager.Devices()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list devices: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"devices": devices})
}

// handleSessionStart implements the /api/v1/session/start endpoint.
func (h *HTTPServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DeviceID string `json:"device_id"`
	}
	if r.Body != nil {
		// An empty body selects the default device.
		json.NewDecoder(r.Body).Decode(&req)
	}

	info, err := h.manager.Start(req.DeviceID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to start session: %v", err), http.StatusConflict)
		return
	}

	writeJSON(w, info)
}

// handleSessionStop implements the /api/v1/session/stop endpoint.
func (h *HTTPServer) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info, err := h.manager.Stop()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to stop session: %v", err), http.StatusConflict)
		return
	}

	writeJSON(w, info)
}

// handleTranscript implements the /api/v1/transcript endpoint. The text
// query parameter switches to the plain-text export rendering.
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := h.manager.Records()

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, transcript.Render(records))
		return
	}

	writeJSON(w, map[string]interface{}{
		"sentences": len(records),
		"records":   records,
	})
}

// handleTranscriptExport implements the /api/v1/transcript/export endpoint.
func (h *HTTPServer) handleTranscriptExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := h.manager.Export()
	if err != nil {
		http.Error(w, fmt.Sprintf("Export failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"path": path})
}

// handleStoredSessions implements the /api/v1/sessions endpoint, listing
// persisted session transcripts.
func (h *HTTPServer) handleStoredSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.store == nil {
		http.Error(w, "Persistence disabled", http.StatusNotFound)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		records, err := h.store.RecordsForSession(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load session: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"session_id": id, "records": records})
		return
	}

	sessions, err := h.store.Sessions()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list sessions: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"sessions": sessions})
}

// handleRoot implements the / endpoint with API documentation.
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Live Translator Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                          "API documentation",
			"GET /health":                    "Service health check",
			"GET /api/v1/status":             "Session status snapshot",
			"GET /api/v1/devices":            "List capture devices",
			"POST /api/v1/session/start":     "Start a translation session",
			"POST /api/v1/session/stop":      "Stop the active session",
			"GET /api/v1/transcript":         "Current transcript (format=text for plain text)",
			"POST /api/v1/transcript/export": "Write the transcript export file",
			"GET /api/v1/sessions":           "Persisted session transcripts (id=... for one)",
			"GET /ws/transcript":             "WebSocket feed of finalized sentences",
			"GET /metrics":                   "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, apiDoc)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
