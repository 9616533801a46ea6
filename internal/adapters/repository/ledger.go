package repository

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/pkg/metrics"
)

// OrderedLedger is a Ledger backed by a map for lookups and a linked list
// for insertion order. It is not safe for concurrent use; callers serialise
// access (the service holds one mutex around every ledger call).
type OrderedLedger struct {
	floor float64
	best  float64
	order *list.List               // of model.PerformanceRecord
	byID  map[string]*list.Element // id -> element in order
}

// NewOrderedLedger constructs an empty ledger. Its best score starts at the floor.
func NewOrderedLedger(opts ...Option) *OrderedLedger {
	l := &OrderedLedger{
		floor: DefaultBestScoreFloor,
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.best = l.floor
	return l
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// Insert implements Ledger.Insert. The best score is raised in O(1); only a
// replacement of the current best record forces a rescan.
func (l *OrderedLedger) Insert(_ context.Context, rec model.PerformanceRecord) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerLatency("insert", sinceMs(start)) }()

	if rec.ID == "" {
		return false, fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if math.IsNaN(rec.Score) || math.IsInf(rec.Score, 0) {
		return false, fmt.Errorf("%w: score %v", ErrInvalidRecord, rec.Score)
	}

	replaced := false
	rescan := false
	if el, ok := l.byID[rec.ID]; ok {
		old := el.Value.(model.PerformanceRecord) //nolint:forcetypeassert // list only holds records
		l.order.Remove(el)
		replaced = true
		rescan = old.Score >= l.best && rec.Score < old.Score
	}
	l.byID[rec.ID] = l.order.PushBack(rec)

	if rescan {
		l.recompute()
	} else if rec.Score > l.best {
		l.best = rec.Score
	}
	return replaced, nil
}

// Remove implements Ledger.Remove. The rescan runs before Remove returns.
func (l *OrderedLedger) Remove(_ context.Context, id string) bool {
	start := time.Now()
	defer func() { metrics.RecordLedgerLatency("remove", sinceMs(start)) }()

	el, ok := l.byID[id]
	if !ok {
		return false
	}
	l.order.Remove(el)
	delete(l.byID, id)
	l.recompute()
	return true
}

// recompute rescans every live record, O(n).
func (l *OrderedLedger) recompute() {
	start := time.Now()
	best := l.floor
	for el := l.order.Front(); el != nil; el = el.Next() {
		if s := el.Value.(model.PerformanceRecord).Score; s > best { //nolint:forcetypeassert // list only holds records
			best = s
		}
	}
	l.best = best
	metrics.RecordBestRecompute(sinceMs(start))
}

// Get implements Ledger.Get.
func (l *OrderedLedger) Get(_ context.Context, id string) (model.PerformanceRecord, error) {
	el, ok := l.byID[id]
	if !ok {
		return model.PerformanceRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return el.Value.(model.PerformanceRecord), nil //nolint:forcetypeassert // list only holds records
}

// List implements Ledger.List. Mutating the result does not affect the ledger.
func (l *OrderedLedger) List(_ context.Context) []model.PerformanceRecord {
	start := time.Now()
	defer func() { metrics.RecordLedgerLatency("list", sinceMs(start)) }()

	out := make([]model.PerformanceRecord, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(model.PerformanceRecord)) //nolint:forcetypeassert // list only holds records
	}
	return out
}

// BestScore implements Ledger.BestScore.
func (l *OrderedLedger) BestScore(_ context.Context) float64 {
	return l.best
}

// Floor returns the configured floor.
func (l *OrderedLedger) Floor() float64 {
	return l.floor
}

// Count returns the number of live records.
func (l *OrderedLedger) Count(_ context.Context) int {
	return len(l.byID)
}

var _ Ledger = (*OrderedLedger)(nil)
