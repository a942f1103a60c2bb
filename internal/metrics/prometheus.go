package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the meeting recorder
type Metrics struct {
	// Capture metrics
	RecordingsStarted prometheus.Counter
	DeviceErrors      *prometheus.CounterVec
	ChunksEmitted     prometheus.Counter
	LateChunksDropped prometheus.Counter
	ChunkSize         prometheus.Histogram
	RecordingDuration prometheus.Histogram
	SessionState      *prometheus.GaugeVec

	// Submission metrics
	Submissions        *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	SubmissionSize     prometheus.Histogram
	Diagnostics        *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "momrec_recordings_started_total",
			Help: "Total number of recordings started",
		}),
		DeviceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "momrec_device_errors_total",
			Help: "Total number of failed device acquisitions",
		}, []string{"kind"}),
		ChunksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "momrec_chunks_emitted_total",
			Help: "Total number of audio chunks appended to a recording",
		}),
		LateChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "momrec_late_chunks_dropped_total",
			Help: "Total number of chunk callbacks ignored after the stream was torn down",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "momrec_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B to ~512KB
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "momrec_recording_duration_seconds",
			Help:    "Duration of stopped recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 13), // 1s to ~68 minutes
		}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "momrec_session_state",
			Help: "Current session state, 1 for the active state",
		}, []string{"state"}),

		// Submission metrics
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "momrec_submissions_total",
			Help: "Total number of submissions by outcome",
		}, []string{"outcome"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "momrec_submission_duration_seconds",
			Help:    "Duration of submission requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}),
		SubmissionSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "momrec_submission_size_bytes",
			Help:    "Aggregate audio bytes per submission",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "momrec_diagnostics_total",
			Help: "Total number of single chunk diagnostic requests",
		}, []string{"outcome"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "momrec_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "momrec_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "momrec_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRecordingStarted increments the recordings started counter
func (m *Metrics) RecordRecordingStarted() {
	m.RecordingsStarted.Inc()
}

// RecordDeviceError counts a failed acquisition of the given kind
func (m *Metrics) RecordDeviceError(kind string) {
	m.DeviceErrors.WithLabelValues(kind).Inc()
}

// RecordChunk records an appended chunk
func (m *Metrics) RecordChunk(sizeBytes int) {
	m.ChunksEmitted.Inc()
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordLateChunk counts a dropped late callback
func (m *Metrics) RecordLateChunk() {
	m.LateChunksDropped.Inc()
}

// RecordRecordingStopped observes the length of a finished recording
func (m *Metrics) RecordRecordingStopped(durationSeconds float64) {
	m.RecordingDuration.Observe(durationSeconds)
}

// SetSessionState marks state as the only active state
func (m *Metrics) SetSessionState(state string) {
	m.SessionState.Reset()
	m.SessionState.WithLabelValues(state).Set(1)
}

// RecordSubmission records a submission outcome
func (m *Metrics) RecordSubmission(outcome string, sizeBytes int, durationSeconds float64) {
	m.Submissions.WithLabelValues(outcome).Inc()
	m.SubmissionSize.Observe(float64(sizeBytes))
	if durationSeconds > 0 {
		m.SubmissionDuration.Observe(durationSeconds)
	}
}

// RecordDiagnostic records a diagnostic request outcome
func (m *Metrics) RecordDiagnostic(outcome string) {
	m.Diagnostics.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
