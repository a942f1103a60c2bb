// Package transcription implements the HTTP client for the Minutes of Meeting
// service. It builds multipart uploads from recorded audio, decodes the
// meeting record and classifies failures into HTTP, network and decode errors.
// Requests are never retried.
package transcription
