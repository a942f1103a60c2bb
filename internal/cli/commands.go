package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naveensnsgroups/ai-powered-mom/internal/render"
	"github.com/naveensnsgroups/ai-powered-mom/internal/server"
)

// NewCheckMicCmd verifies that the microphone can be opened
func NewCheckMicCmd(opts *rootOptions) *cobra.Command {
	var fakeDevice bool

	cmd := &cobra.Command{
		Use:   "check-mic",
		Short: "Check that the microphone can be opened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, fakeDevice)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Session.TestDeviceAccess(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Microphone available (%s)\n", app.Device.Name())
			return nil
		},
	}

	cmd.Flags().BoolVar(&fakeDevice, "fake-device", false, "Use the generated tone device")
	return cmd
}

// NewDiagnoseCmd records a short sample and sends chunks to the diagnostic
// endpoint one by one
func NewDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var (
		seconds    float64
		chunk      int
		fakeDevice bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Record a short sample and check what the service hears",
		Long: "Record for --seconds, then send each chunk (or only --chunk) to the\n" +
			"single-chunk endpoint and print the decoded audio details and transcript.\n" +
			"Nothing is submitted for minutes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive, got %v", seconds)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, fakeDevice)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			ro := recordOptions{duration: time.Duration(seconds * float64(time.Second))}
			ro.width, ro.live = terminalWidth(out)

			return runDiagnose(cmd.Context(), app, out, ro, chunk)
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 3, "How long to record")
	cmd.Flags().IntVar(&chunk, "chunk", -1, "Only diagnose the chunk with this index")
	cmd.Flags().BoolVar(&fakeDevice, "fake-device", false, "Record a generated tone instead of the microphone")

	return cmd
}

func runDiagnose(ctx context.Context, app *App, out io.Writer, ro recordOptions, only int) error {
	if err := capture(ctx, app, out, ro); err != nil {
		return err
	}

	snap := app.Session.Snapshot()
	fmt.Fprintln(out, render.Chunks(snap.Chunks))

	indices := chunkIndices(snap.Chunks)
	if only >= 0 {
		indices = []int{only}
	}

	failures := 0
	for _, i := range indices {
		result, err := app.Session.DiagnoseChunk(ctx, i)
		if err != nil {
			failures++
			fmt.Fprintln(out, render.Error(fmt.Errorf("chunk %d: %w", i, err)))
			continue
		}
		fmt.Fprintln(out, render.Diagnostic(i, result))
		if voice, ok := voiceActivity(app, i); ok {
			fmt.Fprintln(out, render.Info("Local voice activity: %.0f%% of windows, %s of speech",
				voice.VoiceRatio*100, voice.SpeechDuration().Round(10*time.Millisecond)))
		}
	}

	if failures > 0 {
		return &reportedError{err: fmt.Errorf("%d of %d chunks could not be diagnosed", failures, len(indices))}
	}
	return nil
}

// NewServeCmd runs the local HTTP API
func NewServeCmd(opts *rootOptions) *cobra.Command {
	var fakeDevice bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recorder page and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HTTP.Enabled {
				return fmt.Errorf("http is disabled in the configuration")
			}

			app, err := NewApp(cfg, fakeDevice)
			if err != nil {
				return err
			}
			defer app.Close()

			return runServe(cmd.Context(), app, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&fakeDevice, "fake-device", false, "Record a generated tone instead of the microphone")
	return cmd
}

func runServe(ctx context.Context, app *App, out io.Writer) error {
	httpServer := server.NewHTTPServer(app.Config, app.Logger, app.Session, app.Client, app.Metrics, app.Registry)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	fmt.Fprintf(out, "Serving on http://%s\n", app.Config.HTTP.GetListenAddress())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	app.Logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		app.Logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	stats := app.Client.GetStats()
	app.Logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
	)

	return nil
}
