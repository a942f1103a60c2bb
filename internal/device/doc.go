// Package device defines the microphone capability contract used by the
// recording session and ships an ffmpeg backed implementation of it.
package device
