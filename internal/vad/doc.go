// Package vad provides energy-based voice activity detection over PCM-16
// audio. Overlapping windows are classified against a threshold and merged
// into voice segments.
package vad
