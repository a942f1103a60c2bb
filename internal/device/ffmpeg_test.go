package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{
			name:   "macOS privacy block",
			stderr: "[AVFoundation indev @ 0x7f] Failed to create AV capture input device: Not authorized",
			want:   ErrPermissionDenied,
		},
		{
			name:   "alsa permission",
			stderr: "[alsa @ 0x55] cannot open audio device default (Permission denied)\ndefault: Input/output error",
			want:   ErrPermissionDenied,
		},
		{
			name:   "missing device",
			stderr: "[pulse @ 0x55] pa_context_connect() failed: Connection refused",
			want:   ErrDeviceUnavailable,
		},
		{
			name:   "no output",
			stderr: "",
			want:   ErrDeviceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.stderr, errors.New("exit status 1"))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClassifyUsesLastLine(t *testing.T) {
	err := classify("first line\nsecond line", errors.New("exit status 1"))
	if !strings.HasSuffix(err.Error(), "second line") {
		t.Errorf("Expected message to end with last stderr line, got %q", err.Error())
	}
}

func TestFFmpegSupports(t *testing.T) {
	dev := NewFFmpeg(FFmpegConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, enc := range []string{audio.EncodingWAV, audio.EncodingWebMOpus, audio.EncodingOggOpus, audio.EncodingMPEG} {
		if !dev.Supports(enc) {
			t.Errorf("Expected %s to be supported", enc)
		}
	}

	if dev.Supports(audio.EncodingMP4) {
		t.Error("Expected audio/mp4 to be unsupported on a pipe")
	}

	negotiated, ok := audio.Negotiate(audio.DefaultEncodings, dev.Supports)
	if !ok || negotiated != audio.EncodingWAV {
		t.Errorf("Expected negotiation to pick %s, got %q", audio.EncodingWAV, negotiated)
	}
}

func TestFFmpegInputArgs(t *testing.T) {
	dev := NewFFmpeg(FFmpegConfig{InputFormat: "pulse", InputDevice: "default"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	args := strings.Join(dev.inputArgs(Constraints{
		Channels:         1,
		SampleRate:       16000,
		EchoCancellation: true,
		AutoGainControl:  true,
	}), " ")

	for _, want := range []string{"-f pulse", "-i default", "-ac 1", "-ar 16000", "-af afftdn,dynaudnorm"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %q", want, args)
		}
	}

	plain := strings.Join(dev.inputArgs(Constraints{Channels: 1, SampleRate: 8000}), " ")
	if strings.Contains(plain, "-af") {
		t.Errorf("Expected no filter chain without processing constraints, got %q", plain)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(5)
	tb.Write([]byte("abc"))
	tb.Write([]byte("defg"))

	if got := tb.String(); got != "cdefg" {
		t.Errorf("Expected 'cdefg', got %q", got)
	}
}

func TestReleaseWithoutStart(t *testing.T) {
	s := &ffmpegStream{}
	if err := s.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("Second release failed: %v", err)
	}
}

// fakeFFmpeg writes a shell script standing in for ffmpeg. The Open check run
// exits at once; a capture run prints body, waits for "q" on stdin, prints
// tail and exits.
func fakeFFmpeg(t *testing.T, body, tail string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script capture backend needs a POSIX shell")
	}

	script := "#!/bin/sh\n" +
		"case \"$*\" in *\"-f null\"*) exit 0 ;; esac\n" +
		"printf '%s' '" + body + "'\n" +
		"while read line; do [ \"$line\" = q ] && break; done\n" +
		"printf '%s' '" + tail + "'\n"

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake ffmpeg: %v", err)
	}
	return path
}

// collector records every onData delivery in order
type collector struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *collector) onData(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, append([]byte(nil), data...))
}

func (c *collector) snapshot() ([][]byte, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var joined []byte
	for _, chunk := range c.chunks {
		joined = append(joined, chunk...)
	}
	return append([][]byte(nil), c.chunks...), joined
}

func openFakeStream(t *testing.T, binary string) Stream {
	t.Helper()
	dev := NewFFmpeg(FFmpegConfig{Binary: binary, InputFormat: "lavfi", InputDevice: "anullsrc"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	stream, err := dev.Open(context.Background(), Constraints{Channels: 1, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Failed to open fake ffmpeg: %v", err)
	}
	return stream
}

// waitForGoroutines polls until the goroutine count drops to baseline
func waitForGoroutines(t *testing.T, baseline int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for runtime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			t.Fatalf("Expected goroutines to return to %d, still %d running", baseline, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFFmpegStreamDeliversEverythingInOrder(t *testing.T) {
	binary := fakeFFmpeg(t, "AABBCCDD", "EEF")
	baseline := runtime.NumGoroutine()

	stream := openFakeStream(t, binary)
	var c collector
	if err := stream.Start(audio.EncodingWAV, 20*time.Millisecond, c.onData); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the periodic cut of the body before stopping
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, joined := c.snapshot(); string(joined) == "AABBCCDD" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the body to be emitted before stop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := stream.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	chunks, joined := c.snapshot()
	if string(joined) != "AABBCCDDEEF" {
		t.Errorf("Expected 'AABBCCDDEEF' in order, got %q", joined)
	}
	if last := chunks[len(chunks)-1]; !bytes.HasSuffix(last, []byte("F")) {
		t.Errorf("Expected the unaligned tail to arrive last, got %q", last)
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if len(chunk)%2 != 0 {
			t.Errorf("Expected periodic chunk %d to hold whole samples, got %d bytes", i, len(chunk))
		}
	}

	// Nothing arrives once Stop has returned
	time.Sleep(100 * time.Millisecond)
	if after, _ := c.snapshot(); len(after) != len(chunks) {
		t.Errorf("Expected no data after Stop, got %d more deliveries", len(after)-len(chunks))
	}

	if err := stream.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	waitForGoroutines(t, baseline)
}

func TestFFmpegStreamReleaseWithoutStop(t *testing.T) {
	binary := fakeFFmpeg(t, "AABB", "CC")
	baseline := runtime.NumGoroutine()

	stream := openFakeStream(t, binary)
	var c collector
	if err := stream.Start(audio.EncodingWAV, 20*time.Millisecond, c.onData); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := stream.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if err := stream.Release(); err != nil {
		t.Errorf("Second release failed: %v", err)
	}

	// Stop after release is a no-op
	if err := stream.Stop(context.Background()); err != nil {
		t.Errorf("Expected Stop after Release to be a no-op, got %v", err)
	}

	waitForGoroutines(t, baseline)

	if _, joined := c.snapshot(); bytes.Contains(joined, []byte("CC")) {
		t.Errorf("Expected no tail after Release, got %q", joined)
	}
}

func TestFFmpegStreamStartAfterRelease(t *testing.T) {
	stream := openFakeStream(t, fakeFFmpeg(t, "", ""))

	if err := stream.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	err := stream.Start(audio.EncodingWAV, time.Second, func([]byte) {})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}
