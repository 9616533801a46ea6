// Package dedupe tracks ids that were already accepted, e.g. import batch ids,
// so that client retries are idempotent.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 10_000

// Deduper records seen ids.
type Deduper interface {
	// SeenAndRecord atomically reports whether id was seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a failed submission can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps at most maxSize ids and evicts the oldest first.
// maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // id -> insertion sequence
	order   []entry           // insertion order, may hold stale entries after Unrecord
	seq     uint64
	maxSize int
}

type entry struct {
	id  string
	seq uint64
}

// NewInMemoryDeduper creates a deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[id] = d.seq
	if d.maxSize > 0 {
		d.order = append(d.order, entry{id: id, seq: d.seq})
	}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, id)
}

// evictOldest drops the oldest live id. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for len(d.order) > 0 {
		e := d.order[0]
		d.order[0] = entry{}
		d.order = d.order[1:]
		if s, ok := d.seen[e.id]; ok && s == e.seq {
			delete(d.seen, e.id)
			return
		}
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
