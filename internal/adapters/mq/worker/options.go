package worker

import (
	"github.com/okian/mebeatme/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnBatch registers a callback invoked after each job is applied.
// It runs on the worker goroutine.
func WithOnBatch(fn func(BatchResult)) Option {
	return func(w *InMemoryWorker) {
		w.onBatch = fn
	}
}
