// Package repository holds the in-memory record ledger.
package repository

import (
	"context"

	"github.com/okian/mebeatme/internal/domain/model"
)

// DefaultBestScoreFloor is the lowest value BestScore ever reports.
const DefaultBestScoreFloor = 131.5

// Ledger stores performance records keyed by id and tracks the best score.
type Ledger interface {
	// Insert stores rec. A record with the same id is replaced and the new
	// one moves to the end of the iteration order.
	Insert(ctx context.Context, rec model.PerformanceRecord) (replaced bool, err error)

	// Remove deletes the record with id and recomputes the best score.
	// Unknown ids return false and leave the ledger untouched.
	Remove(ctx context.Context, id string) bool

	// Get returns a record by id or ErrNotFound.
	Get(ctx context.Context, id string) (model.PerformanceRecord, error)

	// List returns a copy of the records in insertion order.
	List(ctx context.Context) []model.PerformanceRecord

	// BestScore returns max(floor, highest live score).
	BestScore(ctx context.Context) float64

	Floor() float64
	Count(ctx context.Context) int
}
