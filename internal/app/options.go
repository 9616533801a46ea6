package service

import (
	"time"

	"github.com/okian/mebeatme/internal/adapters/repository"
	"github.com/okian/mebeatme/internal/domain/scoring"
	"github.com/okian/mebeatme/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger injects the record ledger. WithBestScoreFloor is ignored when
// a ledger is supplied; the ledger carries its own floor.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithBestScoreFloor sets the floor of the default ledger.
func WithBestScoreFloor(floor float64) Option {
	return func(s *Service) {
		if floor >= 0 {
			s.floor = floor
		}
	}
}

// WithClock replaces time.Now, used for default record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator replaces the generator used when a run carries no id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithImportQueueSize sets the capacity of the import queue.
func WithImportQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithImportWorkers sets the number of import workers.
func WithImportWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithImportDedupeSize sets how many import batch ids are remembered.
func WithImportDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}
