package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/mebeatme/internal/adapters/http/api"
	"github.com/okian/mebeatme/internal/adapters/http/swagger"
	app "github.com/okian/mebeatme/internal/app"
	"github.com/okian/mebeatme/internal/config"
	"github.com/okian/mebeatme/internal/domain/scoring"
	"github.com/okian/mebeatme/pkg/logger"
	"github.com/okian/mebeatme/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	applyLogLevel(ctx, cfg.LogLevel)

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if path := config.Path(); cfg.WatchConfig && path != "" {
		go func() {
			err := config.Watch(ctx, path, func(next *config.Config) {
				applyLogLevel(ctx, next.LogLevel)
			})
			if err != nil {
				log.Warn(ctx, "config watch stopped", logger.Error(err))
			}
		}()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr),
			logger.String("formula", cfg.Formula), logger.Float64("best_score_floor", cfg.BestScoreFloor))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// applyLogLevel sets the configured level, falling back to info on invalid input.
func applyLogLevel(ctx context.Context, level string) {
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}

func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	formula, err := scoring.FormulaByName(cfg.Formula)
	if err != nil {
		return nil, fmt.Errorf("formula: %w", err)
	}
	return app.New(
		app.WithLogger(log),
		app.WithEngine(scoring.NewEngine(scoring.WithFormula(formula))),
		app.WithBestScoreFloor(cfg.BestScoreFloor),
		app.WithImportQueueSize(cfg.ImportQueueSize),
		app.WithImportWorkers(cfg.ImportWorkers),
		app.WithImportDedupeSize(cfg.ImportDedupeSize),
	), nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc,
		api.WithVersion(cfg.Version),
		api.WithDomain(cfg.Domain),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)
	apiServer.Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that only change through the import path.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	records, _ := stats["records"].(int)
	best, _ := stats["bestScore"].(float64)
	metrics.UpdateLedgerState(records, best)

	if queueLen, ok := stats["importQueueLength"].(int); ok {
		queueSize, _ := stats["importQueueSize"].(int)
		metrics.UpdateImportQueue(queueLen, queueSize)
	}

	if workers, ok := stats["importWorkers"].(int); ok {
		metrics.UpdateImportWorkers(workers)
	}
}
