// Package audio holds the captured chunk model and the helpers that shape it.
// It keeps chunks in capture order, cuts a continuous device stream into
// timeslices, negotiates the recording container and wraps PCM in WAV.
package audio
