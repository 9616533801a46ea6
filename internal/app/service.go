// Package service owns the record ledger and is the only path through which
// performance records are created or removed. It implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	importqueue "github.com/okian/mebeatme/internal/adapters/mq/queue"
	workerpool "github.com/okian/mebeatme/internal/adapters/mq/worker"
	"github.com/okian/mebeatme/internal/adapters/repository"
	"github.com/okian/mebeatme/internal/domain/dedupe"
	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/internal/domain/scoring"
	"github.com/okian/mebeatme/internal/domain/types"
	"github.com/okian/mebeatme/pkg/logger"
	"github.com/okian/mebeatme/pkg/metrics"
)

const (
	defaultImportQueueSize  = 1024
	defaultImportWorkers    = 4
	defaultImportDedupeSize = 10_000
	stopTimeout             = 30 * time.Second
)

// Service implements the API dependencies for the PPI record system.
type Service struct {
	// mu is the single exclusion domain for the ledger: writers hold it for
	// the insert or remove together with the best score update.
	mu     sync.RWMutex
	ledger repository.Ledger

	engine *scoring.Engine
	floor  float64
	clock  func() time.Time
	newID  func() string

	// Import pipeline, guarded by lifeMu.
	lifeMu      sync.Mutex
	started     bool
	startedAt   time.Time
	queueSize   int
	workerCount int
	dedupeSize  int
	deduper     dedupe.Deduper
	importQueue *importqueue.InMemoryQueue
	pool        *workerpool.Pool
	cancelPool  context.CancelFunc

	importedBatches atomic.Int64
	importedRuns    atomic.Int64
	failedRuns      atomic.Int64

	logger logger.Logger
}

// New constructs a Service. The record operations are usable right away;
// Start is only needed for imports.
func New(opts ...Option) *Service {
	s := &Service{
		engine:      scoring.NewEngine(),
		floor:       repository.DefaultBestScoreFloor,
		clock:       time.Now,
		queueSize:   defaultImportQueueSize,
		workerCount: defaultImportWorkers,
		dedupeSize:  defaultImportDedupeSize,
		logger:      logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newID == nil {
		s.newID = s.sessionID
	}
	if s.ledger == nil {
		s.ledger = repository.NewOrderedLedger(repository.WithFloor(s.floor))
	}
	s.floor = s.ledger.Floor()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	metrics.UpdateLedgerState(s.ledger.Count(context.Background()), s.ledger.BestScore(context.Background()))
	return s
}

func (s *Service) sessionID() string {
	return fmt.Sprintf("session_%d_%s", s.clock().UnixMilli(), uuid.NewString()[:8])
}

// maxElapsedSeconds is 2^63; whole seconds at or above it do not fit an int.
const maxElapsedSeconds = float64(math.MaxInt64)

func validRun(distance, elapsed float64) bool {
	return distance > 0 && elapsed > 0 && !math.IsInf(distance, 0) && !math.IsInf(elapsed, 0)
}

// AddRecord scores run and stores it, replacing any record with the same id.
// The stored elapsed time is the submitted value truncated to whole seconds;
// the score uses the submitted value.
func (s *Service) AddRecord(ctx context.Context, run model.RunSubmission) (model.PerformanceRecord, error) {
	if !validRun(run.DistanceMeters, run.ElapsedSeconds) || run.ElapsedSeconds < 1 {
		metrics.RecordInvalidInput()
		return model.PerformanceRecord{}, fmt.Errorf("%w: distance=%v elapsed=%v",
			ErrInvalidInput, run.DistanceMeters, run.ElapsedSeconds)
	}
	if run.ElapsedSeconds >= maxElapsedSeconds {
		metrics.RecordInvalidInput()
		return model.PerformanceRecord{}, fmt.Errorf("%w: elapsed=%v exceeds %v whole seconds",
			ErrInvalidInput, run.ElapsedSeconds, maxElapsedSeconds)
	}

	rec := model.PerformanceRecord{
		ID:              run.ID,
		DistanceMeters:  run.DistanceMeters,
		ElapsedSeconds:  int(run.ElapsedSeconds),
		Score:           s.engine.ScoreOf(run.DistanceMeters, run.ElapsedSeconds),
		TimestampMillis: run.StartedAtEpochMs,
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.TimestampMillis == 0 {
		rec.TimestampMillis = s.clock().UnixMilli()
	}

	s.mu.Lock()
	replaced, err := s.ledger.Insert(ctx, rec)
	best := s.ledger.BestScore(ctx)
	count := s.ledger.Count(ctx)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, repository.ErrInvalidRecord) {
			metrics.RecordInvalidInput()
			return model.PerformanceRecord{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return model.PerformanceRecord{}, fmt.Errorf("store record: %w", err)
	}

	metrics.RecordRecordAdded(string(scoring.BucketFor(rec.DistanceMeters)), rec.Score, replaced)
	metrics.UpdateLedgerState(count, best)
	s.logger.Debug(ctx, "record stored",
		logger.String("id", rec.ID),
		logger.Float64("distanceMeters", rec.DistanceMeters),
		logger.Int("elapsedSeconds", rec.ElapsedSeconds),
		logger.Float64("ppi", rec.Score),
		logger.Bool("replaced", replaced),
		logger.Float64("best", best),
	)
	return rec, nil
}

// RemoveRecord deletes the record with id. It reports false for unknown ids.
func (s *Service) RemoveRecord(ctx context.Context, id string) bool {
	s.mu.Lock()
	removed := s.ledger.Remove(ctx, id)
	best := s.ledger.BestScore(ctx)
	count := s.ledger.Count(ctx)
	s.mu.Unlock()

	metrics.RecordRecordRemoved(removed)
	if removed {
		metrics.UpdateLedgerState(count, best)
		s.logger.Debug(ctx, "record removed", logger.String("id", id), logger.Float64("best", best))
	}
	return removed
}

// GetRecord returns the record stored under id.
func (s *Service) GetRecord(ctx context.Context, id string) (model.PerformanceRecord, error) {
	s.mu.RLock()
	rec, err := s.ledger.Get(ctx, id)
	s.mu.RUnlock()
	if errors.Is(err, repository.ErrNotFound) {
		return model.PerformanceRecord{}, fmt.Errorf("%w: %q", ErrRecordNotFound, id)
	}
	if err != nil {
		return model.PerformanceRecord{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// CurrentBest returns max(floor, best live score).
func (s *Service) CurrentBest(ctx context.Context) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.BestScore(ctx)
}

// ListRecords returns a copy of all records in insertion order.
func (s *Service) ListRecords(ctx context.Context) []model.PerformanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.List(ctx)
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Count(ctx)
}

// Floor returns the configured best score floor.
func (s *Service) Floor() float64 {
	return s.floor
}

// Sessions returns the records in the shape listed by the API.
func (s *Service) Sessions(ctx context.Context) []types.Session {
	return lo.Map(s.ListRecords(ctx), func(r model.PerformanceRecord, _ int) types.Session {
		return types.Session{
			ID:        r.ID,
			Distance:  r.DistanceMeters,
			Duration:  r.ElapsedSeconds,
			PPI:       r.Score,
			Bucket:    string(scoring.BucketFor(r.DistanceMeters)),
			CreatedAt: r.TimestampMillis,
		}
	})
}

// Bests summarises best scores per distance label. Records and current best
// are read under one lock so the view is consistent.
func (s *Service) Bests(ctx context.Context) types.Bests {
	s.mu.RLock()
	records := s.ledger.List(ctx)
	current := s.ledger.BestScore(ctx)
	s.mu.RUnlock()

	byLabel := lo.GroupBy(records, func(r model.PerformanceRecord) string {
		return scoring.DistanceLabel(r.DistanceMeters)
	})
	bests := lo.MapValues(byLabel, func(rs []model.PerformanceRecord, _ string) float64 {
		return lo.MaxBy(rs, func(a, b model.PerformanceRecord) bool { return a.Score > b.Score }).Score
	})

	return types.Bests{
		Bests:       bests,
		BestPPI:     lo.Max(lo.Map(records, func(r model.PerformanceRecord, _ int) float64 { return r.Score })),
		CurrentBest: current,
		Floor:       s.floor,
		LastUpdated: lo.Max(lo.Map(records, func(r model.PerformanceRecord, _ int) int64 { return r.TimestampMillis })),
	}
}

// Curve describes the scoring law in use: formula name, floor and anchor table.
func (s *Service) Curve(_ context.Context) types.Curve {
	return types.Curve{
		Formula: s.engine.Formula().Name(),
		Floor:   s.floor,
		Anchors: lo.Map(s.engine.Curve().Anchors(), func(a scoring.Anchor, _ int) types.Anchor {
			return types.Anchor{DistanceMeters: a.DistanceMeters, EliteTimeSeconds: a.EliteTimeSeconds}
		}),
	}
}

// Preview scores a run without storing it.
func (s *Service) Preview(ctx context.Context, distanceMeters, elapsedSeconds float64) (scoring.Result, error) {
	if !validRun(distanceMeters, elapsedSeconds) {
		return scoring.Result{}, fmt.Errorf("%w: distance=%v elapsed=%v", ErrInvalidInput, distanceMeters, elapsedSeconds)
	}
	res, err := s.engine.Score(ctx, scoring.Input{DistanceMeters: distanceMeters, ElapsedSeconds: elapsedSeconds})
	if err != nil {
		return scoring.Result{}, fmt.Errorf("preview: %w", err)
	}
	return res, nil
}

// Required returns the time and pace needed to reach targetScore.
func (s *Service) Required(_ context.Context, distanceMeters, targetScore float64) (types.Required, error) {
	if !validRun(distanceMeters, targetScore) {
		return types.Required{}, fmt.Errorf("%w: distance=%v score=%v", ErrInvalidInput, distanceMeters, targetScore)
	}
	seconds, err := s.engine.RequiredTime(distanceMeters, targetScore)
	if err != nil {
		return types.Required{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pace, err := s.engine.RequiredPace(distanceMeters, targetScore)
	if err != nil {
		return types.Required{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return types.Required{
		DistanceMeters:  distanceMeters,
		TargetScore:     targetScore,
		ElapsedSeconds:  seconds,
		PaceSecondsPerK: pace,
		BaselineSeconds: s.engine.BaselineTime(distanceMeters),
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	ctx := context.Background()

	s.mu.RLock()
	records := s.ledger.Count(ctx)
	best := s.ledger.BestScore(ctx)
	s.mu.RUnlock()

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	stats := map[string]any{
		"started":          s.started,
		"records":          records,
		"bestScore":        best,
		"floor":            s.floor,
		"formula":          s.engine.Formula().Name(),
		"importWorkers":    0,
		"importQueueSize":  s.queueSize,
		"seenBatches":      s.deduper.Size(),
		"importedBatches":  s.importedBatches.Load(),
		"importedRuns":     s.importedRuns.Load(),
		"importFailedRuns": s.failedRuns.Load(),
	}
	if s.started {
		stats["importQueueLength"] = s.importQueue.Len(ctx)
		stats["importWorkers"] = s.pool.Running()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	return stats
}
