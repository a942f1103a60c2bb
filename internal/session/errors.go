package session

import (
	"errors"
	"fmt"

	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
)

var (
	// Device acquisition
	ErrPermissionDenied    = device.ErrPermissionDenied
	ErrDeviceUnavailable   = device.ErrDeviceUnavailable
	ErrNoSupportedEncoding = errors.New("no supported audio encoding")

	// Submission
	ErrNothingToSubmit   = errors.New("nothing to submit")
	ErrRecordingTooShort = errors.New("recording too short")
	ErrConnectivity      = errors.New("transcription service unreachable")
	ErrNoSpeechDetected  = errors.New("no speech detected")
	ErrRemote            = errors.New("transcription service error")
	ErrInvalidResponse   = errors.New("invalid transcription response")

	// State guards
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrBusy             = errors.New("session is busy")
	ErrCancelled        = errors.New("operation cancelled by reset")
	ErrChunkNotFound    = errors.New("chunk not found")
)

// Messages stored on the session when it fails
const (
	MsgPermissionDenied    = "Microphone access was denied. Allow microphone access for this application and try again."
	MsgDeviceUnavailable   = "No usable microphone was found. Check that an input device is connected and try again."
	MsgNoSupportedEncoding = "This device cannot record in any supported audio format."
	MsgRecordingTooShort   = "Recording is too short to contain speech. Record for longer and try again."
	MsgNoSpeech            = "No speech detected. Speak louder, reduce background noise, or record for longer."
)

// deviceFailure maps a device error onto a failure kind, message and sentinel
func deviceFailure(err error) (FailureKind, string, error) {
	if errors.Is(err, device.ErrPermissionDenied) {
		return FailurePermissionDenied, MsgPermissionDenied, err
	}
	if errors.Is(err, device.ErrDeviceUnavailable) {
		return FailureDeviceUnavailable, MsgDeviceUnavailable, err
	}
	return FailureDeviceUnavailable, MsgDeviceUnavailable, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// clientFailure maps a transcription client error onto a failure kind,
// message and sentinel
func clientFailure(err error) (FailureKind, string, error) {
	msg := transcription.ErrorMessage(err)

	var httpErr *transcription.HTTPError
	var netErr *transcription.NetworkError
	var decodeErr *transcription.DecodeError

	switch {
	case errors.As(err, &httpErr):
		return FailureRemote, msg, fmt.Errorf("%w: %s", ErrRemote, msg)
	case errors.As(err, &netErr):
		return FailureConnectivity, msg, fmt.Errorf("%w: %v", ErrConnectivity, netErr.Err)
	case errors.As(err, &decodeErr):
		return FailureInvalidResponse, msg, fmt.Errorf("%w: %v", ErrInvalidResponse, decodeErr.Err)
	default:
		return FailureRemote, msg, fmt.Errorf("%w: %v", ErrRemote, err)
	}
}
