package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/config"
	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
	"github.com/naveensnsgroups/ai-powered-mom/internal/device/devicetest"
	"github.com/naveensnsgroups/ai-powered-mom/internal/metrics"
	"github.com/naveensnsgroups/ai-powered-mom/internal/session"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
	"github.com/naveensnsgroups/ai-powered-mom/internal/version"
)

// fakeToneHz is the pitch generated by --fake-device
const fakeToneHz = 440

// App holds the components shared by every command
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Device   device.Device
	Client   *transcription.Client
	Session  *session.Session

	closeLog func() error
}

// NewApp wires configuration, logging, metrics, the capture device, the
// transcription client and the session
func NewApp(cfg *config.Config, fakeDevice bool) (*App, error) {
	logger, closeLog := initLogger(cfg.Logging)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	client, err := transcription.NewClient(transcription.Config{
		BaseURL:   cfg.Submission.BaseURL,
		APIKey:    cfg.Submission.APIKey,
		Timeout:   cfg.Submission.GetTimeoutDuration(),
		UserAgent: "momrec/" + version.Version,
	}, logger)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to create transcription client: %w", err)
	}

	dev := newDevice(cfg, fakeDevice, logger)
	sess := session.New(sessionConfig(cfg), dev, client, appMetrics, logger)

	logger.Debug("Configuration loaded",
		slog.String("device", dev.Name()),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Float64("chunk_interval", cfg.Capture.ChunkInterval),
		slog.String("base_url", cfg.Submission.BaseURL),
		slog.String("framing", cfg.Submission.Framing),
		slog.String("export_format", cfg.Submission.ExportFormat),
		slog.String("log_level", cfg.Logging.Level),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  appMetrics,
		Device:   dev,
		Client:   client,
		Session:  sess,
		closeLog: closeLog,
	}, nil
}

// Close releases the session device, idle connections and the log file
func (a *App) Close() error {
	a.Session.Reset()
	a.Client.Close()
	return a.closeLog()
}

// newDevice returns the ffmpeg capture backend, or a tone generator when
// no microphone should be touched
func newDevice(cfg *config.Config, fake bool, logger *slog.Logger) device.Device {
	if fake {
		dev := devicetest.New(audio.EncodingWAV)
		dev.Generate = devicetest.Tone(cfg.Capture.SampleRate, fakeToneHz, cfg.Capture.GetChunkInterval())
		return dev
	}

	return device.NewFFmpeg(device.FFmpegConfig{
		Binary:      cfg.Capture.FFmpeg.Binary,
		InputFormat: cfg.Capture.FFmpeg.InputFormat,
		InputDevice: cfg.Capture.FFmpeg.InputDevice,
	}, logger)
}

// sessionConfig projects the file configuration onto the session
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		SampleRate:        cfg.Capture.SampleRate,
		ChunkInterval:     cfg.Capture.GetChunkInterval(),
		Encodings:         cfg.Capture.Encodings,
		EchoCancellation:  cfg.Capture.EchoCancellation,
		AutoGainControl:   cfg.Capture.AutoGainControl,
		MinRecordingBytes: cfg.Submission.MinRecordingBytes,
		Framing:           cfg.Submission.Framing,
		TranscribePath:    cfg.Submission.TranscribePath,
		ChunksPath:        cfg.Submission.ChunksPath,
		DiagnosticPath:    cfg.Submission.DiagnosticPath,
		ExportFormat:      cfg.Submission.ExportFormat,
	}
}
