package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	importqueue "github.com/okian/mebeatme/internal/adapters/mq/queue"
	workerpool "github.com/okian/mebeatme/internal/adapters/mq/worker"
	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/pkg/logger"
	"github.com/okian/mebeatme/pkg/metrics"
)

// Start creates the import queue and worker pool. Workers outlive ctx
// cancellation so that Stop can drain queued batches.
func (s *Service) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting record service...")

	s.importQueue = importqueue.NewInMemoryQueue(importqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.importQueue, s, workerpool.WithOnBatch(s.onBatch))

	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelPool = cancel
	s.pool.Start(poolCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "record service started",
		logger.Int("importWorkers", s.pool.Size()),
		logger.Int("importQueueSize", s.queueSize),
		logger.Int("importDedupeSize", s.dedupeSize),
		logger.Float64("bestScoreFloor", s.floor),
		logger.String("formula", s.engine.Formula().Name()),
	)
	return nil
}

// Stop closes the import queue and waits for queued batches to be applied.
func (s *Service) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping record service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "import workers did not drain", logger.Error(err))
	}
	s.cancelPool()

	s.started = false
	metrics.UpdateImportQueue(0, s.queueSize)
	s.logger.Info(ctx, "record service stopped")
}

func (s *Service) onBatch(res workerpool.BatchResult) {
	s.importedBatches.Add(1)
	s.importedRuns.Add(int64(res.Stored))
	s.failedRuns.Add(int64(res.Failed))
}

// SubmitImport queues runs for asynchronous storage and returns the batch id.
// A batch id that was already accepted yields ErrDuplicateBatch so clients can
// retry safely; a full queue yields ErrImportBackpressure and forgets the id.
func (s *Service) SubmitImport(ctx context.Context, batchID string, runs []model.RunSubmission) (string, error) {
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: empty import batch", ErrInvalidInput)
	}
	if batchID == "" {
		batchID = "batch_" + uuid.NewString()
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if !s.started {
		return "", ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordImportDuplicateBatch()
		s.logger.Debug(ctx, "duplicate import batch", logger.String("batchID", batchID))
		return batchID, ErrDuplicateBatch
	}

	job := importqueue.Job{BatchID: batchID, Runs: runs, EnqueuedAt: s.clock()}
	if !s.importQueue.Enqueue(ctx, job) {
		s.deduper.Unrecord(ctx, batchID)
		s.logger.Warn(ctx, "import queue full",
			logger.String("batchID", batchID),
			logger.Int("queueLength", s.importQueue.Len(ctx)),
		)
		return batchID, ErrImportBackpressure
	}

	s.logger.Info(ctx, "import batch accepted",
		logger.String("batchID", batchID),
		logger.Int("runs", len(runs)),
	)
	return batchID, nil
}
