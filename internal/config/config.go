package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
)

// Environment variables that override the file configuration
const (
	EnvBaseURL     = "MOMREC_BASE_URL"
	EnvAPIKey      = "MOMREC_API_KEY"
	EnvLogLevel    = "MOMREC_LOG_LEVEL"
	EnvInputDevice = "MOMREC_INPUT_DEVICE"
)

// Config represents the complete recorder configuration
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Submission SubmissionConfig `yaml:"submission"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	SampleRate       int          `yaml:"sample_rate"`
	ChunkInterval    float64      `yaml:"chunk_interval"` // seconds
	Encodings        []string     `yaml:"encodings"`      // preference order
	EchoCancellation bool         `yaml:"echo_cancellation"`
	AutoGainControl  bool         `yaml:"auto_gain_control"`
	StopTimeout      int          `yaml:"stop_timeout"` // seconds
	FFmpeg           FFmpegConfig `yaml:"ffmpeg"`
}

// FFmpegConfig selects the capture backend input
type FFmpegConfig struct {
	Binary      string `yaml:"binary"`
	InputFormat string `yaml:"input_format"`
	InputDevice string `yaml:"input_device"`
}

// SubmissionConfig contains transcription service parameters
type SubmissionConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	Timeout           int    `yaml:"timeout"` // seconds
	Framing           string `yaml:"framing"` // whole or chunks
	TranscribePath    string `yaml:"transcribe_path"`
	ChunksPath        string `yaml:"chunks_path"`
	DiagnosticPath    string `yaml:"diagnostic_path"`
	ExportFormat      string `yaml:"export_format"` // none, pdf or docx
	MinRecordingBytes int    `yaml:"min_recording_bytes"`
}

// HTTPConfig contains local HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:       16000,
			ChunkInterval:    1.0,
			Encodings:        append([]string(nil), audio.DefaultEncodings...),
			EchoCancellation: true,
			AutoGainControl:  true,
			StopTimeout:      5,
			FFmpeg: FFmpegConfig{
				Binary:      "ffmpeg",
				InputFormat: defaultInputFormat(),
				InputDevice: defaultInputDevice(),
			},
		},
		Submission: SubmissionConfig{
			BaseURL:           "http://localhost:8000",
			Timeout:           120,
			Framing:           "whole",
			TranscribePath:    "/speech-to-text/transcribe",
			ChunksPath:        "/live-speech-to-text/live-chunks",
			DiagnosticPath:    "/live-speech-to-text/live-single",
			ExportFormat:      "none",
			MinRecordingBytes: 1000,
		},
		HTTP: HTTPConfig{
			Port:    8090,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file over the defaults, then applies .env
// files and environment overrides. A missing file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadEnvFiles loads variables from the given .env files into the process
// environment. Files that do not exist are skipped; variables already set
// in the environment are kept.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Submission.BaseURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok {
		c.Submission.APIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvInputDevice); ok && v != "" {
		c.Capture.FFmpeg.InputDevice = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Submission.Validate(); err != nil {
		return fmt.Errorf("submission config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}

	if c.ChunkInterval < 0.1 || c.ChunkInterval > 60 {
		return fmt.Errorf("chunk_interval must be between 0.1 and 60 seconds, got %f", c.ChunkInterval)
	}

	if len(c.Encodings) == 0 {
		return fmt.Errorf("encodings cannot be empty")
	}

	for _, enc := range c.Encodings {
		if !strings.HasPrefix(audio.BaseType(enc), "audio/") {
			return fmt.Errorf("encoding %q is not an audio MIME type", enc)
		}
	}

	if c.StopTimeout < 1 {
		return fmt.Errorf("stop_timeout must be at least 1 second, got %d", c.StopTimeout)
	}

	if c.FFmpeg.Binary == "" {
		return fmt.Errorf("ffmpeg.binary cannot be empty")
	}

	return nil
}

// Validate validates submission configuration
func (s *SubmissionConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got '%s'", s.BaseURL)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	validFramings := map[string]bool{"whole": true, "chunks": true}
	if !validFramings[s.Framing] {
		return fmt.Errorf("framing must be 'whole' or 'chunks', got '%s'", s.Framing)
	}

	for name, path := range map[string]string{
		"transcribe_path": s.TranscribePath,
		"chunks_path":     s.ChunksPath,
		"diagnostic_path": s.DiagnosticPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/', got '%s'", name, path)
		}
	}

	validExports := map[string]bool{"none": true, "pdf": true, "docx": true}
	if !validExports[s.ExportFormat] {
		return fmt.Errorf("export_format must be one of [none, pdf, docx], got '%s'", s.ExportFormat)
	}

	if s.MinRecordingBytes < 0 {
		return fmt.Errorf("min_recording_bytes cannot be negative, got %d", s.MinRecordingBytes)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout or stderr is a file path
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// GetChunkInterval returns the emission interval as a time.Duration
func (c *CaptureConfig) GetChunkInterval() time.Duration {
	return time.Duration(c.ChunkInterval * float64(time.Second))
}

// GetStopTimeout returns how long a stop may wait for the device flush
func (c *CaptureConfig) GetStopTimeout() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}

// GetTimeoutDuration returns the submission timeout as a time.Duration
func (s *SubmissionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetListenAddress returns the HTTP listen address
func (h *HTTPConfig) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}
