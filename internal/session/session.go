package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
	"github.com/naveensnsgroups/ai-powered-mom/internal/metrics"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
)

// Submission framings
const (
	FramingWhole  = "whole"
	FramingChunks = "chunks"
)

// Config contains the capture and submission parameters of a session
type Config struct {
	SampleRate       int
	ChunkInterval    time.Duration
	Encodings        []string // Preference order
	EchoCancellation bool
	AutoGainControl  bool

	MinRecordingBytes int
	Framing           string
	TranscribePath    string
	ChunksPath        string
	DiagnosticPath    string
	ExportFormat      string // none, pdf or docx
}

// Transcriber is the part of the transcription client the session uses
type Transcriber interface {
	Transcribe(ctx context.Context, upload transcription.Upload) (*transcription.Result, error)
	Diagnose(ctx context.Context, upload transcription.Upload) (*transcription.DiagnosticResult, error)
}

// Session is the single recording session of the process. All transitions
// and device callbacks are serialised by mu; device and network I/O happen
// outside of it.
type Session struct {
	config  Config
	device  device.Device
	client  Transcriber
	metrics *metrics.Metrics
	logger  *slog.Logger

	id        string
	state     State
	acquiring bool // StartRecording is waiting on the device
	stopping  bool // StopRecording is waiting on the flush
	chunks    *audio.ChunkBuffer
	encoding  string
	stream    device.Stream

	// generation changes on every teardown. Callbacks and in-flight
	// operations that captured an older value are ignored.
	generation uint64

	errorMessage string
	failure      FailureKind
	result       *transcription.Result

	startedAt time.Time
	stoppedAt time.Time

	now func() time.Time

	mu sync.Mutex
}

// Snapshot is the read-only projection of a session handed to presentation
type Snapshot struct {
	ID           string                `json:"id"`
	State        State                 `json:"state"`
	Acquiring    bool                  `json:"acquiring,omitempty"`
	Device       string                `json:"device"`
	Encoding     string                `json:"encoding,omitempty"`
	Chunks       []audio.ChunkInfo     `json:"chunks"`
	TotalBytes   int                   `json:"total_bytes"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Failure      FailureKind           `json:"failure,omitempty"`
	Result       *transcription.Result `json:"result,omitempty"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	StoppedAt    *time.Time            `json:"stopped_at,omitempty"`
	LastChunkAt  *time.Time            `json:"last_chunk_at,omitempty"`
}

// Duration returns how long the recording ran, or has run so far
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.StoppedAt == nil {
		return time.Since(*s.StartedAt)
	}
	return s.StoppedAt.Sub(*s.StartedAt)
}

// New creates an idle session
func New(config Config, dev device.Device, client Transcriber, m *metrics.Metrics, logger *slog.Logger) *Session {
	if config.ChunkInterval <= 0 {
		config.ChunkInterval = time.Second
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if len(config.Encodings) == 0 {
		config.Encodings = audio.DefaultEncodings
	}
	if config.Framing == "" {
		config.Framing = FramingWhole
	}

	s := &Session{
		config:  config,
		device:  dev,
		client:  client,
		metrics: m,
		logger:  logger,
		id:      uuid.New().String(),
		chunks:  audio.NewChunkBuffer(),
		now:     time.Now,
	}
	m.SetSessionState(Idle.String())
	return s
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a consistent copy of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.chunks.GetStats()
	snap := Snapshot{
		ID:           s.id,
		State:        s.state,
		Acquiring:    s.acquiring,
		Device:       s.device.Name(),
		Encoding:     s.encoding,
		Chunks:       s.chunks.Infos(),
		TotalBytes:   stats.TotalBytes,
		ErrorMessage: s.errorMessage,
		Failure:      s.failure,
		Result:       s.result,
	}
	if !stats.LastUpdate.IsZero() {
		t := stats.LastUpdate
		snap.LastChunkAt = &t
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.stoppedAt.IsZero() {
		t := s.stoppedAt
		snap.StoppedAt = &t
	}
	return snap
}

// Chunk returns a copy of the chunk with the given sequence index
func (s *Session) Chunk(index int) (audio.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.Get(index)
}

// Reset releases the device, drops chunks, error and result and returns to
// Idle. Safe from any state. An in-flight start or submit that resumes
// afterwards finds its generation outdated and discards its outcome.
func (s *Session) Reset() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.stopping = false
	s.generation++
	s.clearLocked()
	s.encoding = ""
	s.startedAt = time.Time{}
	s.stoppedAt = time.Time{}
	s.setStateLocked(Idle)
	id := s.id
	s.mu.Unlock()

	if stream != nil {
		s.release(stream)
	}

	s.logger.Debug("Session reset", slog.String("session_id", id))
}

// clearLocked drops everything a previous recording left behind
func (s *Session) clearLocked() {
	s.chunks.Clear()
	s.errorMessage = ""
	s.failure = FailureNone
	s.result = nil
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("Session state changed",
		slog.String("session_id", s.id),
		slog.String("from", s.state.String()),
		slog.String("to", next.String()))
	s.state = next
	s.metrics.SetSessionState(next.String())
}

// failLocked moves the session to Failed with a user facing message
func (s *Session) failLocked(kind FailureKind, message string) {
	s.failure = kind
	s.errorMessage = message
	s.setStateLocked(Failed)

	s.logger.Warn("Session failed",
		slog.String("session_id", s.id),
		slog.String("failure", string(kind)),
		slog.String("message", message))
}
