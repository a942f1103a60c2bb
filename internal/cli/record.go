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
	"github.com/naveensnsgroups/ai-powered-mom/internal/session"
)

// recordOptions control a single capture from the terminal
type recordOptions struct {
	duration   time.Duration // zero records until interrupted
	noSubmit   bool
	showChunks bool
	live       bool // redraw the status line every second
	width      int
}

// NewRecordCmd records a meeting and prints its minutes
func NewRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		ro         recordOptions
		framing    string
		export     string
		fakeDevice bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a meeting and generate its minutes",
		Long: "Record from the microphone until Ctrl+C (or --duration), then submit the\n" +
			"recording and print the meeting minutes. A second Ctrl+C while submitting\n" +
			"abandons the request.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if framing != "" {
				cfg.Submission.Framing = framing
			}
			if export != "" {
				cfg.Submission.ExportFormat = export
			}
			if err := cfg.Submission.Validate(); err != nil {
				return err
			}

			app, err := NewApp(cfg, fakeDevice)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			ro.width, ro.live = terminalWidth(out)
			return runRecord(cmd.Context(), app, out, ro)
		},
	}

	cmd.Flags().DurationVarP(&ro.duration, "duration", "d", 0, "Stop automatically after this long (e.g. 30m)")
	cmd.Flags().BoolVar(&ro.noSubmit, "no-submit", false, "Stop after recording without transcribing")
	cmd.Flags().BoolVar(&ro.showChunks, "chunks", false, "Print the chunk table after stopping")
	cmd.Flags().StringVar(&framing, "framing", "", "Submission framing: whole or chunks")
	cmd.Flags().StringVar(&export, "export", "", "Ask the service for an export: none, pdf or docx")
	cmd.Flags().BoolVar(&fakeDevice, "fake-device", false, "Record a generated tone instead of the microphone")

	return cmd
}

func runRecord(ctx context.Context, app *App, out io.Writer, ro recordOptions) error {
	if err := capture(ctx, app, out, ro); err != nil {
		return err
	}

	sess := app.Session
	snap := sess.Snapshot()
	fmt.Fprintln(out, render.Status(snap))
	if ro.showChunks {
		fmt.Fprintln(out, render.Chunks(snap.Chunks))
	}

	if voice, ok := voiceActivity(app, chunkIndices(snap.Chunks)...); ok && !voice.HasVoice() {
		fmt.Fprintln(out, render.Info("No voice detected in the recording, the minutes may come back empty"))
	}

	if ro.noSubmit {
		return nil
	}

	submitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, render.Info("Transcribing %s of audio...", render.Bytes(snap.TotalBytes)))
	if err := sess.Submit(submitCtx); err != nil {
		return failed(out, sess, err)
	}

	fmt.Fprintln(out, render.Result(sess.Snapshot().Result, ro.width))
	return nil
}

// capture starts a recording, waits for the duration or an interrupt and
// stops it
func capture(ctx context.Context, app *App, out io.Writer, ro recordOptions) error {
	sess := app.Session

	if err := sess.StartRecording(ctx); err != nil {
		return failed(out, sess, err)
	}

	waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ro.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, ro.duration)
		defer cancel()
		fmt.Fprintln(out, render.Info("Recording for %s, press Ctrl+C to stop early", ro.duration))
	} else {
		fmt.Fprintln(out, render.Info("Recording, press Ctrl+C to stop"))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-waitCtx.Done():
			break wait
		case <-ticker.C:
			if ro.live {
				fmt.Fprint(out, "\r\033[K"+render.Status(sess.Snapshot()))
			}
		}
	}
	if ro.live {
		fmt.Fprint(out, "\r\033[K")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.Config.Capture.GetStopTimeout())
	defer cancel()

	if err := sess.StopRecording(stopCtx); err != nil {
		return err
	}

	app.Logger.Debug("Capture finished", slog.String("state", sess.State().String()))
	return nil
}

// failed prints the message stored on a failed session and marks the error
// as reported
func failed(out io.Writer, sess *session.Session, err error) error {
	msg := render.Failure(sess.Snapshot())
	if msg == "" {
		return err
	}
	fmt.Fprintln(out, msg)
	return &reportedError{err: err}
}
