package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
)

// FFmpegConfig selects the ffmpeg binary and capture input
type FFmpegConfig struct {
	Binary      string // defaults to "ffmpeg"
	InputFormat string // avfoundation, pulse, alsa, dshow
	InputDevice string // ":default", "default", "audio=Microphone"
}

// output describes how one MIME type is produced on stdout
type output struct {
	codec  string
	format string
	align  int
}

var outputs = map[string]output{
	audio.EncodingWAV:      {codec: "pcm_s16le", format: "s16le", align: 2},
	audio.EncodingWebMOpus: {codec: "libopus", format: "webm", align: 1},
	audio.EncodingWebM:     {codec: "libopus", format: "webm", align: 1},
	audio.EncodingOggOpus:  {codec: "libopus", format: "ogg", align: 1},
	audio.EncodingMPEG:     {codec: "libmp3lame", format: "mp3", align: 1},
}

// FFmpeg captures the microphone by running ffmpeg and reading its stdout
type FFmpeg struct {
	config FFmpegConfig
	logger *slog.Logger
}

// NewFFmpeg creates an ffmpeg backed device
func NewFFmpeg(config FFmpegConfig, logger *slog.Logger) *FFmpeg {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.InputFormat == "" {
		config.InputFormat = "avfoundation"
	}
	if config.InputDevice == "" {
		config.InputDevice = ":default"
	}
	return &FFmpeg{config: config, logger: logger}
}

// Name returns the device name
func (f *FFmpeg) Name() string {
	return fmt.Sprintf("ffmpeg %s %s", f.config.InputFormat, f.config.InputDevice)
}

// Supports reports whether ffmpeg can stream the encoding to a pipe.
// audio/mp4 needs a seekable output and is never offered.
func (f *FFmpeg) Supports(encoding string) bool {
	_, ok := outputs[encoding]
	return ok
}

// Open probes the input by capturing a fraction of a second. The returned
// stream spawns the long-running capture only when started.
func (f *FFmpeg) Open(ctx context.Context, c Constraints) (Stream, error) {
	if _, err := exec.LookPath(f.config.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrDeviceUnavailable, f.config.Binary)
	}

	args := append(f.inputArgs(c), "-t", "0.2", "-f", "null", "-")
	cmd := exec.CommandContext(ctx, f.config.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, ctx.Err())
		}
		return nil, classify(stderr.String(), err)
	}

	f.logger.Debug("Audio input opened",
		slog.String("device", f.Name()),
		slog.Int("sample_rate", c.SampleRate))

	return &ffmpegStream{
		device:      f,
		constraints: c,
	}, nil
}

func (f *FFmpeg) inputArgs(c Constraints) []string {
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "error",
		"-f", f.config.InputFormat,
		"-i", f.config.InputDevice,
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
	}

	var filters []string
	if c.EchoCancellation {
		filters = append(filters, "afftdn")
	}
	if c.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	return args
}

// classify maps ffmpeg's stderr onto the device sentinel errors
func classify(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)

	for _, marker := range []string{"permission denied", "not authorized", "operation not permitted", "access denied"} {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, lastLine(msg))
		}
	}

	if msg == "" {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, lastLine(msg))
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ffmpegStream is one capture process
type ffmpegStream struct {
	device      *FFmpeg
	constraints Constraints

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	slicer *audio.Slicer
	onData func([]byte)

	readDone chan struct{}
	tickStop chan struct{}
	tickDone chan struct{}

	started  bool
	stopped  bool
	released bool

	mu sync.Mutex
}

// Start spawns the capture process and begins periodic emission
func (s *ffmpegStream) Start(encoding string, interval time.Duration, onData func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return fmt.Errorf("%w: stream already released", ErrDeviceUnavailable)
	}
	if s.started {
		return fmt.Errorf("stream already started")
	}

	out, ok := outputs[encoding]
	if !ok {
		return fmt.Errorf("unsupported encoding %q", encoding)
	}

	args := s.device.inputArgs(s.constraints)
	args = append(args, "-c:a", out.codec, "-f", out.format, "pipe:1")

	cmd := exec.Command(s.device.config.Binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	s.stderr = newTailBuffer(4096)
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.slicer = audio.NewSlicer(out.align * s.constraints.Channels)
	s.onData = onData
	s.readDone = make(chan struct{})
	s.tickStop = make(chan struct{})
	s.tickDone = make(chan struct{})
	s.started = true

	go s.readLoop(stdout)
	go s.tickLoop(interval)

	s.device.logger.Info("Capture started",
		slog.String("device", s.device.Name()),
		slog.String("encoding", encoding),
		slog.Duration("interval", interval))

	return nil
}

func (s *ffmpegStream) readLoop(stdout io.Reader) {
	defer close(s.readDone)

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.slicer.Write(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.device.logger.Debug("ffmpeg stdout closed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (s *ffmpegStream) tickLoop(interval time.Duration) {
	defer close(s.tickDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if data := s.slicer.Cut(); data != nil {
				s.onData(data)
			}
		case <-s.tickStop:
			return
		}
	}
}

// Stop asks ffmpeg to finish, waits for the remaining output and delivers it
func (s *ffmpegStream) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	// ffmpeg finalises the container and exits on "q"
	if _, err := io.WriteString(s.stdin, "q\n"); err != nil {
		s.device.logger.Debug("Failed to signal ffmpeg", slog.String("error", err.Error()))
	}
	s.stdin.Close()

	var stopErr error
	select {
	case <-s.readDone:
	case <-ctx.Done():
		s.cmd.Process.Kill()
		<-s.readDone
		stopErr = fmt.Errorf("ffmpeg did not stop in time: %w", ctx.Err())
	}

	close(s.tickStop)
	<-s.tickDone

	if s.slicer.HasPending() {
		s.onData(s.slicer.Flush())
	}

	stats := s.slicer.GetStats()
	s.device.logger.Info("Capture stopped",
		slog.String("device", s.device.Name()),
		slog.Uint64("slices", stats.Slices),
		slog.Uint64("bytes", stats.TotalBytes))

	if err := s.cmd.Wait(); err != nil && stopErr == nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			stopErr = fmt.Errorf("ffmpeg wait failed: %w", err)
		} else if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			s.device.logger.Debug("ffmpeg exited", slog.String("stderr", lastLine(msg)))
		}
	}

	return stopErr
}

// Release kills the capture process if it is still running
func (s *ffmpegStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	if s.started && !s.stopped {
		s.stopped = true
		if s.slicer.HasPending() {
			s.device.logger.Debug("Discarding unsent capture data",
				slog.Int("pending_bytes", s.slicer.GetStats().Pending))
		}
		s.cmd.Process.Kill()
		s.stdin.Close()
		go func() {
			<-s.readDone
			close(s.tickStop)
			<-s.tickDone
			s.cmd.Wait()
		}()
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	buf []byte
	max int
	mu  sync.Mutex
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
