// Package queue holds import jobs between the HTTP handler that accepts a
// batch and the workers that apply it to the ledger.
package queue

import (
	"context"
	"sync"

	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is the payload type flowing through the queue.
type Job = model.ImportJob

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting jobs. Jobs already queued are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateImportQueue(0, q.capacity)
	return q
}

// Enqueue adds a job to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordImportRejected("closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordImportRejected("context_cancelled")
		return false
	}

	select {
	case q.jobs <- j:
		metrics.RecordImportEnqueued()
		metrics.UpdateImportQueue(len(q.jobs), q.capacity)
		return true
	default:
		metrics.RecordImportRejected("queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
// Each call starts its own forwarder, so every consumer should call it once.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordImportDequeued()
				metrics.UpdateImportQueue(len(q.jobs), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.jobs)
}

// Cap returns the configured capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close stops accepting jobs. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

var _ Queue = (*InMemoryQueue)(nil)
