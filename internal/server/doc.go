// Package server implements the local HTTP API of the recorder. It exposes
// the read projection of the single recording session and its operations
// to a browser page, together with health, configuration, transcription
// statistics and Prometheus metrics endpoints.
package server
