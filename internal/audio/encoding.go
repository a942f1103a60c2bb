package audio

import "strings"

// Recording containers, most preferred first
const (
	EncodingWAV      = "audio/wav"
	EncodingWebMOpus = "audio/webm;codecs=opus"
	EncodingWebM     = "audio/webm"
	EncodingOggOpus  = "audio/ogg;codecs=opus"
	EncodingMP4      = "audio/mp4"
	EncodingMPEG     = "audio/mpeg"
)

// DefaultEncodings is the preference list used when none is configured:
// a lossless container first, then progressively more common compressed ones.
var DefaultEncodings = []string{
	EncodingWAV,
	EncodingWebMOpus,
	EncodingWebM,
	EncodingOggOpus,
	EncodingMP4,
	EncodingMPEG,
}

// Negotiate returns the first encoding in prefs the platform supports
func Negotiate(prefs []string, supports func(string) bool) (string, bool) {
	for _, enc := range prefs {
		if supports(enc) {
			return enc, true
		}
	}
	return "", false
}

// BaseType strips codec parameters from a MIME type
func BaseType(encoding string) string {
	base, _, _ := strings.Cut(encoding, ";")
	return strings.TrimSpace(strings.ToLower(base))
}

// Extension returns the file extension used when uploading the encoding
func Extension(encoding string) string {
	switch BaseType(encoding) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	default:
		return "bin"
	}
}

// IsPCM reports whether chunk payloads of this encoding are raw PCM-16 that
// must be wrapped in a WAV header before upload
func IsPCM(encoding string) bool {
	return Extension(encoding) == "wav"
}
