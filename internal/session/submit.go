package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
)

// Submit sends the stopped recording to the transcription service and
// resolves the outcome onto the session. It returns the classified error
// after the session has been updated; it is never retried.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Stopped || s.chunks.Len() == 0 {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrNothingToSubmit, state)
	}

	total := s.chunks.TotalBytes()
	if total < s.config.MinRecordingBytes {
		s.failLocked(FailureRecordingTooShort, MsgRecordingTooShort)
		s.mu.Unlock()
		s.metrics.RecordSubmission(string(FailureRecordingTooShort), total, 0)
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrRecordingTooShort, total, s.config.MinRecordingBytes)
	}

	upload, err := s.buildUpload(s.encoding)
	if err != nil {
		s.failLocked(FailureRecordingTooShort, MsgRecordingTooShort)
		s.mu.Unlock()
		s.metrics.RecordSubmission(string(FailureRecordingTooShort), total, 0)
		return fmt.Errorf("%w: %v", ErrRecordingTooShort, err)
	}

	s.setStateLocked(Submitting)
	gen := s.generation
	id := s.id
	s.mu.Unlock()

	s.logger.Info("Submitting recording",
		slog.String("session_id", id),
		slog.String("framing", s.config.Framing),
		slog.String("path", upload.Path),
		slog.Int("parts", len(upload.Parts)),
		slog.Int("bytes", total))

	startTime := time.Now()
	result, err := s.client.Transcribe(ctx, upload)
	elapsed := time.Since(startTime)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Info("Discarding submission outcome after reset",
			slog.String("session_id", id),
			slog.Duration("elapsed", elapsed))
		return ErrCancelled
	}

	if err != nil {
		kind, msg, wrapped := clientFailure(err)
		s.failLocked(kind, msg)
		s.metrics.RecordSubmission(string(kind), total, elapsed.Seconds())
		return wrapped
	}

	if !result.HasSpeech() {
		s.failLocked(FailureNoSpeech, MsgNoSpeech)
		s.metrics.RecordSubmission(string(FailureNoSpeech), total, elapsed.Seconds())
		return ErrNoSpeechDetected
	}

	s.result = result
	s.chunks.Clear()
	s.setStateLocked(Completed)
	s.metrics.RecordSubmission("completed", total, elapsed.Seconds())

	s.logger.Info("Recording transcribed",
		slog.String("session_id", id),
		slog.String("title", result.Minutes().Title),
		slog.Int("transcript_chars", len(result.Transcript)),
		slog.Duration("elapsed", elapsed))

	return nil
}

// DiagnoseChunk sends a single chunk to the diagnostic endpoint. The session
// state is never touched; failures are only returned to the caller.
func (s *Session) DiagnoseChunk(ctx context.Context, index int) (*transcription.DiagnosticResult, error) {
	s.mu.Lock()
	chunk, ok := s.chunks.Get(index)
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrChunkNotFound, index)
	}

	part, err := s.chunkPart(chunk, "file")
	if err != nil {
		s.metrics.RecordDiagnostic("invalid_chunk")
		return nil, fmt.Errorf("failed to package chunk %d: %w", index, err)
	}

	result, err := s.client.Diagnose(ctx, transcription.Upload{
		Path:  s.config.DiagnosticPath,
		Parts: []transcription.Part{part},
	})
	if err != nil {
		kind, _, wrapped := clientFailure(err)
		s.metrics.RecordDiagnostic(string(kind))
		return nil, wrapped
	}

	s.metrics.RecordDiagnostic("ok")
	s.logger.Debug("Chunk diagnosed",
		slog.Int("index", index),
		slog.Float64("duration", result.AudioInfo.Duration),
		slog.Float64("max_amplitude", result.AudioInfo.MaxAmplitude))

	return result, nil
}

// buildUpload packages the buffered chunks according to the configured
// framing. Callers hold s.mu.
func (s *Session) buildUpload(encoding string) (transcription.Upload, error) {
	if s.config.Framing == FramingChunks {
		upload := transcription.Upload{Path: s.config.ChunksPath}
		for _, c := range s.chunks.Chunks() {
			part, err := s.chunkPart(c, "files")
			if err != nil {
				return transcription.Upload{}, fmt.Errorf("chunk %d: %w", c.SequenceIndex, err)
			}
			upload.Parts = append(upload.Parts, part)
		}
		return upload, nil
	}

	data := s.chunks.Concat()

	contentType := encoding
	if audio.IsPCM(encoding) {
		wav, err := audio.EncodeWAV(evenLength(data), s.config.SampleRate, 1)
		if err != nil {
			return transcription.Upload{}, err
		}
		data = wav
		contentType = audio.EncodingWAV
	}

	upload := transcription.Upload{
		Path: s.config.TranscribePath,
		Parts: []transcription.Part{{
			Field:       "file",
			Filename:    "recording." + audio.Extension(encoding),
			ContentType: contentType,
			Data:        data,
		}},
	}
	if s.config.ExportFormat != "" {
		upload.Query = url.Values{"export_format": {s.config.ExportFormat}}
	}
	return upload, nil
}

// chunkPart wraps one chunk as a multipart file. PCM chunks get their own
// WAV header so each part is independently decodable.
func (s *Session) chunkPart(c audio.Chunk, field string) (transcription.Part, error) {
	data := c.Data
	contentType := c.Encoding
	if audio.IsPCM(c.Encoding) {
		wav, err := audio.EncodeWAV(evenLength(data), s.config.SampleRate, 1)
		if err != nil {
			return transcription.Part{}, err
		}
		data = wav
		contentType = audio.EncodingWAV
	}

	return transcription.Part{
		Field:       field,
		Filename:    fmt.Sprintf("chunk_%04d.%s", c.SequenceIndex, audio.Extension(c.Encoding)),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// evenLength drops a trailing half sample
func evenLength(pcm []byte) []byte {
	return pcm[:len(pcm)&^1]
}
