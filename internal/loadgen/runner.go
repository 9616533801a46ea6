package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/mebeatme/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("invalid load config")

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("runs", cfg.NumRuns),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Bool("verbose", cfg.Verbose))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	runs, err := generateRuns(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("run generation failed: %w", err)
	}

	if err := submitRuns(ctx, cfg, runs, stats); err != nil {
		return stats, fmt.Errorf("run submission failed: %w", err)
	}

	// /sync/runs stores synchronously, so there is nothing to wait for.
	if err := verifyResults(ctx, cfg, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveRunsToFile(ctx, cfg.OutputFile, runs); err != nil {
			logger.Get().Warn(ctx, "failed to save runs to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)
	return stats, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg == nil:
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	case cfg.BaseURL == "":
		return fmt.Errorf("%w: empty url", ErrInvalidConfig)
	case cfg.NumRuns < 1:
		return fmt.Errorf("%w: runs must be positive", ErrInvalidConfig)
	case cfg.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case cfg.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Get(ctx, cfg.BaseURL+"/health")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_, _ = readResponseBody(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveRunsToFile writes the generated runs as a JSON array that POST /sync/runs accepts.
func saveRunsToFile(ctx context.Context, filename string, runs []GeneratedRun) error {
	if len(runs) == 0 {
		return fmt.Errorf("no runs to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "runs saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, runsPerSecond float64

	if stats.RunsSubmitted > 0 {
		successRate = float64(stats.RunsStored) / float64(stats.RunsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		runsPerSecond = float64(stats.RunsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("runsGenerated", stats.RunsGenerated),
		logger.Int("runsSubmitted", stats.RunsSubmitted),
		logger.Int("runsStored", stats.RunsStored),
		logger.Int("runsFailed", stats.RunsFailed),
		logger.Float64("maxPpi", stats.MaxPPI),
		logger.Float64("bestPpi", stats.BestPPI),
		logger.Float64("currentBest", stats.CurrentBest),
		logger.Int("sessions", stats.Sessions),
		logger.String("removedId", stats.RemovedID),
		logger.Float64("bestAfterRemove", stats.BestAfter),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("runsPerSecond", runsPerSecond))
}
