package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naveensnsgroups/ai-powered-mom/internal/fakemom"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		address string
		opts    fakemom.Options
	)

	cmd := &cobra.Command{
		Use:   "fakemom",
		Short: "Run a local fake of the meeting-minutes service",
		Long: "fakemom serves /speech-to-text/transcribe, /live-speech-to-text/live-chunks\n" +
			"and /live-speech-to-text/live-single with canned minutes. Silent WAV uploads\n" +
			"come back with an empty transcript.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			return serve(cmd.Context(), address, fakemom.NewServer(opts, logger), logger)
		},
	}

	cmd.Flags().StringVar(&address, "address", "127.0.0.1:8000", "Listen address")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 200*time.Millisecond, "Delay before every answer")
	cmd.Flags().IntVar(&opts.FailStatus, "fail-status", 0, "Fail every request with this HTTP status")
	cmd.Flags().StringVar(&opts.FailDetail, "fail-detail", "", "Detail message sent with --fail-status")
	cmd.Flags().StringVar(&opts.Transcript, "transcript", "", "Transcript returned for audible uploads")

	return cmd
}

func serve(ctx context.Context, address string, fake *fakemom.Server, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              address,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Fake MoM service starting", slog.String("address", address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
