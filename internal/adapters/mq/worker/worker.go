// Package worker applies queued import batches to the record service.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mebeatme/internal/adapters/mq/queue"
	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/pkg/logger"
	"github.com/okian/mebeatme/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Recorder stores one submitted run.
type Recorder interface {
	AddRecord(ctx context.Context, run model.RunSubmission) (model.PerformanceRecord, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// BatchResult summarises one applied import job.
type BatchResult struct {
	BatchID string
	Stored  int
	Failed  int
	Errors  []error
}

// Worker processes import jobs.
type Worker interface {
	// Run consumes jobs until the queue is drained, ctx is cancelled or
	// Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	recorder Recorder
	name     string
	onBatch  func(BatchResult)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res := w.processJob(ctx, job)
			if w.onBatch != nil {
				w.onBatch(res)
			}
		}
	}
}

// Shutdown signals the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// processJob stores every run of the batch. A failing run is logged and
// counted; it does not abort the rest of the batch.
func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) BatchResult { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	res := BatchResult{BatchID: job.BatchID}

	for i, run := range job.Runs {
		if _, err := w.recorder.AddRecord(ctx, run); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("run %d: %w", i, err))
			metrics.RecordErrorByType("import_run", "low")
			w.logger.Warn(ctx, "import run rejected",
				logger.String("batchID", job.BatchID),
				logger.Int("index", i),
				logger.Error(err),
			)
			continue
		}
		res.Stored++
	}

	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordImportBatch(res.Stored, res.Failed, ms)
	w.logger.Info(ctx, "import batch applied",
		logger.String("batchID", job.BatchID),
		logger.Int("stored", res.Stored),
		logger.Int("failed", res.Failed),
		logger.Float64("latencyMs", ms),
		logger.Float64("queuedMs", float64(start.Sub(job.EnqueuedAt).Milliseconds())),
	)
	return res
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	running atomic.Int64
	logger  logger.Logger
}

// NewPool creates a worker pool. workerCount < 1 means one per CPU.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, recorder, wopts...)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Running returns the number of workers whose loop has not exited.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.running.Add(1)
		metrics.UpdateImportWorkers(p.Running())
		go func() {
			defer func() {
				p.running.Add(-1)
				metrics.UpdateImportWorkers(p.Running())
			}()
			w.Run(ctx)
		}()
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// busy when ctx (capped at 30s) expires are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.stop()
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
