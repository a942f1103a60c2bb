package device

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned when the user or the OS refused microphone access
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable is returned when no usable input device could be opened
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
)

// Constraints describes the capture the session asks the device for
type Constraints struct {
	Channels         int  `json:"channels"`
	SampleRate       int  `json:"sample_rate"`
	EchoCancellation bool `json:"echo_cancellation"`
	AutoGainControl  bool `json:"auto_gain_control"`
}

// Device is an audio input that can be opened for capture
type Device interface {
	// Name identifies the device in logs and status output
	Name() string

	// Supports reports whether the device can record in the given MIME type
	Supports(encoding string) bool

	// Open acquires the input. It may block on a permission prompt and fails
	// with ErrPermissionDenied or ErrDeviceUnavailable.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired input handle
type Stream interface {
	// Start begins encoding and calls onData with one payload every interval.
	// onData is never called concurrently with itself.
	Start(encoding string, interval time.Duration, onData func([]byte)) error

	// Stop ends capture. Any buffered tail is delivered through onData
	// before Stop returns.
	Stop(ctx context.Context) error

	// Release frees the input. Safe to call more than once and without Start.
	Release() error
}
