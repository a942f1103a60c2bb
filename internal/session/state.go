package session

import "fmt"

// State is the lifecycle position of a recording session
type State int

const (
	Idle State = iota
	MicrophoneTesting
	Recording
	Stopped
	Submitting
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	MicrophoneTesting: "microphone_testing",
	Recording:         "recording",
	Stopped:           "stopped",
	Submitting:        "submitting",
	Completed:         "completed",
	Failed:            "failed",
}

// AllStates lists every state in declaration order
var AllStates = []State{Idle, MicrophoneTesting, Recording, Stopped, Submitting, Completed, Failed}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// canStart reports whether a new recording may begin from this state
func (s State) canStart() bool {
	switch s {
	case Idle, Stopped, Completed, Failed:
		return true
	}
	return false
}

// FailureKind classifies why a session is in the Failed state
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailurePermissionDenied    FailureKind = "permission_denied"
	FailureDeviceUnavailable   FailureKind = "device_unavailable"
	FailureNoSupportedEncoding FailureKind = "no_supported_encoding"
	FailureRecordingTooShort   FailureKind = "recording_too_short"
	FailureConnectivity        FailureKind = "connectivity"
	FailureNoSpeech            FailureKind = "no_speech"
	FailureRemote              FailureKind = "remote"
	FailureInvalidResponse     FailureKind = "invalid_response"
)
