package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
)

func (s *Session) constraints() device.Constraints {
	return device.Constraints{
		Channels:         1,
		SampleRate:       s.config.SampleRate,
		EchoCancellation: s.config.EchoCancellation,
		AutoGainControl:  s.config.AutoGainControl,
	}
}

// TestDeviceAccess opens the microphone and immediately releases it. The
// session passes through MicrophoneTesting and returns to Idle whatever the
// outcome; nothing is stored.
func (s *Session) TestDeviceAccess(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle || s.acquiring {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot test the microphone while %s", ErrBusy, state)
	}
	s.setStateLocked(MicrophoneTesting)
	gen := s.generation
	s.mu.Unlock()

	stream, err := s.device.Open(ctx, s.constraints())
	if err == nil {
		s.release(stream)
	}

	s.mu.Lock()
	if s.state == MicrophoneTesting && s.generation == gen {
		s.setStateLocked(Idle)
	}
	s.mu.Unlock()

	if err != nil {
		kind, _, wrapped := deviceFailure(err)
		s.metrics.RecordDeviceError(string(kind))
		return wrapped
	}

	s.logger.Info("Microphone access confirmed", slog.String("device", s.device.Name()))
	return nil
}

// StartRecording acquires the device, negotiates an encoding and begins
// periodic chunk emission. A previous Stopped, Completed or Failed recording
// is discarded first.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == Recording:
		s.mu.Unlock()
		return ErrAlreadyRecording
	case s.acquiring || !s.state.canStart():
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start recording while %s", ErrBusy, state)
	}

	s.acquiring = true
	s.generation++
	gen := s.generation
	s.id = uuid.New().String()
	s.clearLocked()
	s.encoding = ""
	s.startedAt = time.Time{}
	s.stoppedAt = time.Time{}
	s.setStateLocked(Idle)
	s.mu.Unlock()

	stream, err := s.device.Open(ctx, s.constraints())

	s.mu.Lock()
	s.acquiring = false

	if gen != s.generation {
		// Reset while the device was being acquired
		s.mu.Unlock()
		if stream != nil {
			s.release(stream)
		}
		return ErrCancelled
	}

	if err != nil {
		kind, msg, wrapped := deviceFailure(err)
		s.failLocked(kind, msg)
		s.mu.Unlock()
		s.metrics.RecordDeviceError(string(kind))
		return wrapped
	}

	encoding, ok := audio.Negotiate(s.config.Encodings, s.device.Supports)
	if !ok {
		s.failLocked(FailureNoSupportedEncoding, MsgNoSupportedEncoding)
		s.mu.Unlock()
		s.release(stream)
		s.metrics.RecordDeviceError(string(FailureNoSupportedEncoding))
		return fmt.Errorf("%w: device supports none of %v", ErrNoSupportedEncoding, s.config.Encodings)
	}

	s.stream = stream
	s.encoding = encoding
	s.startedAt = s.now()
	s.setStateLocked(Recording)
	id := s.id
	s.mu.Unlock()

	// Started outside the lock; the device may deliver data before Start returns
	onData := func(data []byte) { s.handleData(gen, data) }
	if err := stream.Start(encoding, s.config.ChunkInterval, onData); err != nil {
		s.mu.Lock()
		if gen == s.generation {
			s.stream = nil
			s.generation++
			s.chunks.Clear()
			kind, msg, _ := deviceFailure(err)
			s.failLocked(kind, msg)
		}
		s.mu.Unlock()
		s.release(stream)

		_, _, wrapped := deviceFailure(err)
		return wrapped
	}

	s.metrics.RecordRecordingStarted()
	s.logger.Info("Recording started",
		slog.String("session_id", id),
		slog.String("device", s.device.Name()),
		slog.String("encoding", encoding),
		slog.Duration("chunk_interval", s.config.ChunkInterval))

	return nil
}

// handleData is the emission callback. It appends a chunk only while the
// session is Recording and the callback belongs to the live stream.
func (s *Session) handleData(gen uint64, data []byte) {
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording || gen != s.generation {
		s.metrics.RecordLateChunk()
		s.logger.Debug("Dropped late audio chunk",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(data)))
		return
	}

	chunk := audio.Chunk{
		Data:          data,
		SequenceIndex: s.chunks.Next(),
		CapturedAt:    s.now(),
		Encoding:      s.encoding,
	}
	if err := s.chunks.Append(chunk); err != nil {
		s.logger.Error("Failed to append audio chunk",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		return
	}

	s.metrics.RecordChunk(len(data))
}

// StopRecording flushes the device, releases it and moves to Stopped. It is
// a no-op unless the session is Recording.
func (s *Session) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Recording || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	stream := s.stream
	gen := s.generation
	s.mu.Unlock()

	// The tail arrives through handleData while the session is still Recording
	stopErr := stream.Stop(ctx)

	s.mu.Lock()
	if gen != s.generation {
		// Reset already released the stream
		s.mu.Unlock()
		return nil
	}
	s.stopping = false
	s.stream = nil
	s.generation++
	s.stoppedAt = s.now()
	s.setStateLocked(Stopped)
	chunks := s.chunks.Len()
	total := s.chunks.TotalBytes()
	duration := s.stoppedAt.Sub(s.startedAt)
	id := s.id
	s.mu.Unlock()

	s.release(stream)

	if stopErr != nil {
		s.logger.Warn("Audio stream did not stop cleanly",
			slog.String("session_id", id),
			slog.String("error", stopErr.Error()))
	}

	s.metrics.RecordRecordingStopped(duration.Seconds())
	s.logger.Info("Recording stopped",
		slog.String("session_id", id),
		slog.Int("chunks", chunks),
		slog.Int("bytes", total),
		slog.Duration("duration", duration))

	return nil
}

// release frees a stream handle, logging a failure
func (s *Session) release(stream device.Stream) {
	if err := stream.Release(); err != nil {
		s.logger.Warn("Failed to release audio stream", slog.String("error", err.Error()))
	}
}
