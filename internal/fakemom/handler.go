// Package fakemom is a local stand-in for the meeting-minutes service. It
// accepts the same multipart uploads, measures the audio it receives and
// answers with canned minutes, so the recorder can be exercised without the
// real transcription backend.
package fakemom

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/vad"
)

// Upload limits of the service. Whole recordings need minRecordingBytes,
// every file sent to the chunk endpoints needs minChunkBytes.
const (
	minRecordingBytes = 1000
	minChunkBytes     = 50
	maxUploadBytes    = 64 << 20
	maxChunkFiles     = 50
)

// Options change how the fake answers
type Options struct {
	Delay      time.Duration // added before every answer
	FailStatus int           // when non-zero every request fails with it
	FailDetail string
	Transcript string // returned for audible uploads
	SampleRate int    // assumed for non-WAV uploads
}

// Server implements the three upload endpoints
type Server struct {
	opts   Options
	logger *slog.Logger
}

// NewServer creates a fake service
func NewServer(opts Options, logger *slog.Logger) *Server {
	if opts.Transcript == "" {
		opts.Transcript = "Thanks everyone for joining. We agreed to ship the release on Friday and Alice will tag it."
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.FailStatus != 0 && opts.FailDetail == "" {
		opts.FailDetail = "Internal server error: simulated failure"
	}
	return &Server{opts: opts, logger: logger}
}

// Handler returns the routed endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/speech-to-text/transcribe", s.wrap(s.handleTranscribe))
	mux.HandleFunc("/live-speech-to-text/live-chunks", s.wrap(s.handleChunks))
	mux.HandleFunc("/live-speech-to-text/live-single", s.wrap(s.handleSingle))
	return mux
}

// wrap applies the method check, the configured delay and failure
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}

		if s.opts.Delay > 0 {
			select {
			case <-time.After(s.opts.Delay):
			case <-r.Context().Done():
				return
			}
		}

		if s.opts.FailStatus != 0 {
			s.logger.Info("Failing request as configured",
				slog.String("path", r.URL.Path),
				slog.Int("status", s.opts.FailStatus))
			writeDetail(w, s.opts.FailStatus, s.opts.FailDetail)
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid multipart body: %v", err))
			return
		}
		next(w, r)
	}
}

// handleTranscribe answers the whole-recording endpoint
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readFile(r, "file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if len(data) < minRecordingBytes {
		writeDetail(w, http.StatusBadRequest, "Audio too short to transcribe.")
		return
	}

	level, pcm, rate := s.measure(data)
	s.logger.Info("Recording received",
		slog.String("filename", filename),
		slog.Int("bytes", len(data)),
		slog.Float64("peak", level.Peak))

	transcript := s.transcriptFor(level, pcm, rate)

	response := map[string]interface{}{
		"transcript":  transcript,
		"mom":         minutes(transcript),
		"export_file": nil,
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("export_format"))) {
	case "pdf":
		response["export_file"] = "/tmp/mom_" + uuid.NewString() + ".pdf"
	case "docx":
		response["export_file"] = "/tmp/mom_" + uuid.NewString() + ".docx"
	}

	writeJSON(w, http.StatusOK, response)
}

// handleChunks answers the per-chunk endpoint
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeDetail(w, http.StatusBadRequest, "No audio chunks provided.")
		return
	}
	if len(files) > maxChunkFiles {
		files = files[:maxChunkFiles]
	}

	var (
		details    []map[string]interface{}
		successful int
		heard      bool
	)
	for i, fh := range files {
		detail := map[string]interface{}{"index": i, "filename": fh.Filename, "size": fh.Size, "status": "processed"}

		f, err := fh.Open()
		if err != nil {
			detail["status"] = "error"
			details = append(details, detail)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()

		switch {
		case err != nil:
			detail["status"] = "error"
		case len(data) < minChunkBytes:
			detail["status"] = "skipped_too_small"
		default:
			successful++
			if level, pcm, rate := s.measure(data); s.transcriptFor(level, pcm, rate) != "" {
				heard = true
			}
		}
		details = append(details, detail)
	}

	transcript := ""
	if heard {
		transcript = s.opts.Transcript
	}
	fileDetails := details
	if len(fileDetails) > 10 {
		fileDetails = fileDetails[:10]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": transcript,
		"mom":        minutes(transcript),
		"processing_info": map[string]interface{}{
			"total_files":        len(files),
			"processed_files":    len(files),
			"successful_files":   successful,
			"audio_chunks":       successful,
			"processing_time":    time.Since(start).Seconds(),
			"transcription_time": 0.0,
			"total_time":         time.Since(start).Seconds(),
			"file_details":       fileDetails,
		},
	})
}

// handleSingle answers the diagnostic endpoint
func (s *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	data, _, err := readFile(r, "file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if len(data) < minChunkBytes {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Audio file too small: %d bytes", len(data)))
		return
	}

	level, pcm, sampleRate := s.measure(data)
	if level.Samples == 0 {
		writeDetail(w, http.StatusBadRequest, "Audio file contains no data")
		return
	}

	duration := float64(level.Samples) / float64(sampleRate)
	if info, err := audio.GetWAVInfo(data); err == nil {
		duration = info.Duration
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": s.transcriptFor(level, pcm, sampleRate),
		"audio_info": map[string]interface{}{
			"duration":      duration,
			"sample_rate":   sampleRate,
			"samples":       level.Samples,
			"max_amplitude": level.Peak,
		},
	})
}

// measure returns the level and samples of a WAV upload. Compressed uploads
// cannot be decoded here and are reported as audible at the assumed rate.
func (s *Server) measure(data []byte) (audio.Level, []byte, int) {
	pcm, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Level{Peak: 1, RMS: 1, Samples: len(data) / 2}, nil, s.opts.SampleRate
	}
	return audio.MeasureLevel(pcm), pcm, rate
}

// transcriptFor returns the canned transcript when the upload holds voice
func (s *Server) transcriptFor(level audio.Level, pcm []byte, rate int) string {
	if level.IsSilent() {
		return ""
	}
	if pcm == nil {
		return s.opts.Transcript
	}

	processor, err := vad.NewProcessor(vad.Config{SampleRate: rate})
	if err != nil {
		return s.opts.Transcript
	}
	if result := processor.Process(pcm); !result.HasVoice() {
		s.logger.Debug("No voice in upload", slog.Int("windows", result.Windows))
		return ""
	}
	return s.opts.Transcript
}

// minutes builds the canned meeting record. Silence yields the empty
// defaults the real service falls back to.
func minutes(transcript string) map[string]interface{} {
	if transcript == "" {
		return map[string]interface{}{
			"title":        "",
			"summary":      map[string]string{"overview": "", "detailed": ""},
			"attendees":    []string{},
			"tasks":        []string{},
			"action_items": []string{},
			"decisions":    []string{},
			"risks":        []string{},
			"data_points":  []string{},
		}
	}

	return map[string]interface{}{
		"title": "Release planning",
		"summary": map[string]string{
			"overview": "The team agreed on the release date.",
			"detailed": "The release ships on Friday. Alice tags the build; Bob watches the rollout.",
		},
		"attendees": []string{"Alice", "Bob"},
		"tasks":     []string{},
		"action_items": []map[string]string{
			{"task": "Tag the release", "owner": "Alice", "deadline": "Friday"},
			{"task": "Watch the rollout dashboards", "owner": "Bob"},
		},
		"decisions":   []string{"Ship on Friday"},
		"risks":       []string{"Friday deploys leave little time to react"},
		"data_points": []string{},
		"follow_ups":  []string{"Retro on Monday"},
	}
}

func readFile(r *http.Request, field string) ([]byte, string, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("field %q: %v", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %q: %v", field, err)
	}
	return data, header.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
