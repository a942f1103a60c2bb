package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naveensnsgroups/ai-powered-mom/internal/config"
	"github.com/naveensnsgroups/ai-powered-mom/internal/metrics"
	"github.com/naveensnsgroups/ai-powered-mom/internal/session"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
	"github.com/naveensnsgroups/ai-powered-mom/internal/version"
)

//go:embed index.html
var indexPage []byte

// StatsProvider reports transcription client statistics
type StatsProvider interface {
	GetStats() transcription.ClientStats
}

// HTTPServer exposes the recording session to a local presentation layer
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	config   *config.Config
	session  *session.Session
	client   StatsProvider
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates the local HTTP API server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, sess *session.Session,
	client StatsProvider, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		session:   sess,
		client:    client,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	// Submissions block until the transcription service answers
	writeTimeout := appConfig.Submission.GetTimeoutDuration() + 10*time.Second

	h.server = &http.Server{
		Addr:         appConfig.HTTP.GetListenAddress(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session read model and operations
	mux.HandleFunc("/session", h.withMetrics("/session", h.handleSession))
	mux.HandleFunc("/session/test-device", h.withMetrics("/session/test-device", h.handleTestDevice))
	mux.HandleFunc("/session/start", h.withMetrics("/session/start", h.handleStart))
	mux.HandleFunc("/session/stop", h.withMetrics("/session/stop", h.handleStop))
	mux.HandleFunc("/session/submit", h.withMetrics("/session/submit", h.handleSubmit))
	mux.HandleFunc("/session/reset", h.withMetrics("/session/reset", h.handleReset))
	mux.HandleFunc("/session/chunks", h.withMetrics("/session/chunks", h.handleChunks))
	mux.HandleFunc("/session/chunks/", h.withMetrics("/session/chunks/{index}/diagnose", h.handleDiagnose))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

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

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
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

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps a session error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNothingToSubmit),
		errors.Is(err, session.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, session.ErrChunkNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrPermissionDenied),
		errors.Is(err, session.ErrDeviceUnavailable),
		errors.Is(err, session.ErrNoSupportedEncoding),
		errors.Is(err, session.ErrRecordingTooShort),
		errors.Is(err, session.ErrNoSpeechDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrConnectivity),
		errors.Is(err, session.ErrRemote),
		errors.Is(err, session.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeSessionError reports a failed operation. Failures that moved the
// session to Failed carry the message stored on it.
func (h *HTTPServer) writeSessionError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	detail := err.Error()

	if status != http.StatusConflict {
		if snap := h.session.Snapshot(); snap.State == session.Failed && snap.ErrorMessage != "" {
			detail = snap.ErrorMessage
		}
	}

	writeDetail(w, status, detail)
}

// requirePost rejects anything but POST
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	snap := h.session.Snapshot()
	stats := h.client.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "momrec",
			"version": version.Version,
		},
		"components": map[string]interface{}{
			"session": map[string]interface{}{
				"state":  snap.State,
				"device": snap.Device,
				"chunks": len(snap.Chunks),
			},
			"transcription": map[string]interface{}{
				"base_url":        h.config.Submission.BaseURL,
				"total_requests":  stats.TotalRequests,
				"success_rate":    stats.SuccessRate,
				"active_requests": stats.ActiveRequests,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleSession implements GET /session
func (h *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *HTTPServer) handleTestDevice(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if err := h.session.TestDeviceAccess(r.Context()); err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if err := h.session.StartRecording(r.Context()); err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Capture.GetStopTimeout())
	defer cancel()

	if err := h.session.StopRecording(ctx); err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// handleSubmit blocks until the transcription service answers. The session
// carries the outcome either way.
func (h *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if err := h.session.Submit(r.Context()); err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	h.session.Reset()
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// handleChunks implements GET /session/chunks
func (h *HTTPServer) handleChunks(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       snap.State,
		"encoding":    snap.Encoding,
		"total_bytes": snap.TotalBytes,
		"chunks":      snap.Chunks,
	})
}

// handleDiagnose implements POST /session/chunks/{index}/diagnose
func (h *HTTPServer) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/session/chunks/")
	indexStr, action, ok := strings.Cut(rest, "/")
	if !ok || action != "diagnose" {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}

	if !requirePost(w, r) {
		return
	}

	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Invalid chunk index %q", indexStr))
		return
	}

	result, err := h.session.DiagnoseChunk(r.Context(), index)
	if err != nil {
		// Diagnostics never change the session, so the error text is all there is
		writeDetail(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	capture := h.config.Capture
	submission := h.config.Submission

	sanitizedConfig := map[string]interface{}{
		"capture": map[string]interface{}{
			"sample_rate":       capture.SampleRate,
			"chunk_interval":    capture.ChunkInterval,
			"encodings":         capture.Encodings,
			"echo_cancellation": capture.EchoCancellation,
			"auto_gain_control": capture.AutoGainControl,
			"stop_timeout":      capture.StopTimeout,
			"ffmpeg": map[string]interface{}{
				"input_format": capture.FFmpeg.InputFormat,
				"input_device": capture.FFmpeg.InputDevice,
			},
		},
		"submission": map[string]interface{}{
			"base_url":            submission.BaseURL,
			"timeout":             submission.Timeout,
			"framing":             submission.Framing,
			"transcribe_path":     submission.TranscribePath,
			"chunks_path":         submission.ChunksPath,
			"diagnostic_path":     submission.DiagnosticPath,
			"export_format":       submission.ExportFormat,
			"min_recording_bytes": submission.MinRecordingBytes,
			"api_key_set":         submission.APIKey != "",
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, h.client.GetStats())
}

// handleRoot serves the recorder page
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}

	if !requireGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}
