// Package session implements the recording session state machine: device
// acquisition, ordered chunk capture, submission to the transcription
// service and resolution of the outcome.
//
// A process owns one Session. Every operation checks the current state and
// rejects calls that are out of sequence instead of queueing them.
package session
