package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/mebeatme/pkg/logger"
)

// Default flag values.
const (
	defaultBaseURL        = "http://localhost:8080"
	defaultNumRuns        = 1000
	defaultWorkersPerCPU  = 2
	defaultRequestTimeout = 30 * time.Second
	defaultTestTimeout    = 10 * time.Minute
	logFilePermission     = 0600
)

// NewCommand returns the load-runs command.
func NewCommand() *cobra.Command {
	cfg := &Config{}
	var (
		logFile     string
		logFormat   string
		testTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "load-runs",
		Short: "Submit generated runs to a MeBeatMe server and verify its best score",
		Example: `  load-runs --url http://localhost:8080 --runs 5000 --workers 16
  load-runs --runs 200 --output runs.json --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLogging(cmd.OutOrStdout(), logFile, logFormat); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), testTimeout)
			defer cancel()

			_, err := Run(ctx, cfg)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the service")
	flags.IntVar(&cfg.NumRuns, "runs", defaultNumRuns, "Number of runs to generate and submit")
	flags.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersPerCPU, "Number of concurrent submitters")
	flags.DurationVar(&cfg.Timeout, "timeout", defaultRequestTimeout, "HTTP request timeout")
	flags.DurationVar(&testTimeout, "deadline", defaultTestTimeout, "Overall deadline for the load run")
	flags.StringVar(&cfg.OutputFile, "output", "", "Write generated runs to this JSON file")
	flags.StringVar(&logFile, "log", "", "Also append logs to this file")
	flags.StringVar(&logFormat, "log-format", logger.FormatText, "Log format: text or json")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every rejected run")

	return cmd
}

// setupLogging sends logs to out and, when logFile is set, to that file too.
func setupLogging(out io.Writer, logFile, format string) error {
	w := out
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(out, file)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
