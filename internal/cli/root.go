package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/naveensnsgroups/ai-powered-mom/internal/config"
	"github.com/naveensnsgroups/ai-powered-mom/internal/render"
	"github.com/naveensnsgroups/ai-powered-mom/internal/version"
)

const defaultConfigPath = "configs/config.yaml"

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
}

// loadConfig reads the configuration and applies the global overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFiles...)
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}

	return cfg, nil
}

// reportedError is an error whose details were already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCmd builds the momrec command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "momrec",
		Short: "Record meetings and turn them into minutes",
		Long: "momrec captures a meeting from the microphone in fixed-interval chunks and\n" +
			"submits the recording to a meeting-minutes service for transcription and\n" +
			"structured minutes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to configuration file")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Env files to load before reading MOMREC_* variables")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(NewCheckMicCmd(opts))
	rootCmd.AddCommand(NewRecordCmd(opts))
	rootCmd.AddCommand(NewDiagnoseCmd(opts))
	rootCmd.AddCommand(NewServeCmd(opts))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the command tree and returns the process exit code
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, render.Error(err))
		}
		return 1
	}
	return 0
}

// NewVersionCmd prints build metadata
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}

// terminalWidth returns the width of w when it is a terminal
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return render.DefaultWidth, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return render.DefaultWidth, true
	}
	return width, true
}
