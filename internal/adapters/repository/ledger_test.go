package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/okian/mebeatme/internal/domain/model"
)

func rec(id string, score float64) model.PerformanceRecord {
	return model.PerformanceRecord{ID: id, DistanceMeters: 5000, ElapsedSeconds: 1500, Score: score, TimestampMillis: 1}
}

func ids(records []model.PerformanceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func mustInsert(t *testing.T, l *OrderedLedger, r model.PerformanceRecord) bool {
	t.Helper()
	replaced, err := l.Insert(context.Background(), r)
	if err != nil {
		t.Fatalf("insert %s: %v", r.ID, err)
	}
	return replaced
}

func TestOrderedLedger_EmptyReportsFloor(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()

	if got := l.BestScore(ctx); got != DefaultBestScoreFloor {
		t.Errorf("expected floor %v, got %v", DefaultBestScoreFloor, got)
	}
	if got := l.Count(ctx); got != 0 {
		t.Errorf("expected count 0, got %d", got)
	}
	if got := l.List(ctx); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestOrderedLedger_InsertBelowFloor(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("slow", 47.68))

	if got := l.BestScore(ctx); got != 131.5 {
		t.Errorf("expected 131.5, got %v", got)
	}
	if got := l.Count(ctx); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
}

func TestOrderedLedger_InsertRaisesBest(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("a", 200))
	mustInsert(t, l, rec("b", 500))
	mustInsert(t, l, rec("c", 300))

	if got := l.BestScore(ctx); got != 500 {
		t.Errorf("expected 500, got %v", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(l.List(ctx))); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderedLedger_RemoveRecomputes(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("a", 200))
	mustInsert(t, l, rec("b", 500))
	mustInsert(t, l, rec("c", 300))

	if !l.Remove(ctx, "b") {
		t.Fatal("expected remove of b to succeed")
	}
	if got := l.BestScore(ctx); got != 300 {
		t.Errorf("expected 300 after removing best, got %v", got)
	}
	if !l.Remove(ctx, "a") || !l.Remove(ctx, "c") {
		t.Fatal("expected removes to succeed")
	}
	if got := l.BestScore(ctx); got != DefaultBestScoreFloor {
		t.Errorf("expected floor after emptying, got %v", got)
	}
}

func TestOrderedLedger_RemoveUnknown(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("a", 250))

	if l.Remove(ctx, "missing") {
		t.Error("expected remove of unknown id to return false")
	}
	if got := l.BestScore(ctx); got != 250 {
		t.Errorf("expected best unchanged at 250, got %v", got)
	}
	if got := l.Count(ctx); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
}

func TestOrderedLedger_ReplaceSameID(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("a", 400))
	mustInsert(t, l, rec("b", 200))

	if replaced := mustInsert(t, l, rec("a", 150)); !replaced {
		t.Error("expected second insert of a to report replaced")
	}
	if got := l.Count(ctx); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
	if got := l.BestScore(ctx); got != 200 {
		t.Errorf("expected replaced best to be dropped, got %v", got)
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids(l.List(ctx))); diff != "" {
		t.Errorf("replacement should move to the end (-want +got):\n%s", diff)
	}

	got, err := l.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 150 {
		t.Errorf("expected stored score 150, got %v", got.Score)
	}

	// The old score must not come back after an unrelated removal.
	l.Remove(ctx, "b")
	if got := l.BestScore(ctx); got != 150 {
		t.Errorf("expected 150, got %v", got)
	}
}

func TestOrderedLedger_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()
	mustInsert(t, l, rec("a", 300))

	out := l.List(ctx)
	out[0].Score = 9999

	want := []model.PerformanceRecord{rec("a", 300)}
	if diff := cmp.Diff(want, l.List(ctx)); diff != "" {
		t.Errorf("ledger changed through list copy (-want +got):\n%s", diff)
	}
	if got := l.BestScore(ctx); got != 300 {
		t.Errorf("expected 300, got %v", got)
	}
}

func TestOrderedLedger_GetUnknown(t *testing.T) {
	_, err := NewOrderedLedger().Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderedLedger_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()

	cases := []model.PerformanceRecord{
		rec("", 100),
		rec("nan", math.NaN()),
		rec("inf", math.Inf(1)),
	}
	for _, c := range cases {
		if _, err := l.Insert(ctx, c); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%q: expected ErrInvalidRecord, got %v", c.ID, err)
		}
	}
	if got := l.Count(ctx); got != 0 {
		t.Errorf("expected nothing stored, got %d", got)
	}
}

func TestOrderedLedger_WithFloor(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger(WithFloor(0), WithFloor(math.NaN()))

	if got := l.Floor(); got != 0 {
		t.Errorf("expected floor 0, got %v", got)
	}
	mustInsert(t, l, rec("a", 47.68))
	if got := l.BestScore(ctx); got != 47.68 {
		t.Errorf("expected 47.68, got %v", got)
	}
}

func TestOrderedLedger_BestMatchesMaxAfterChurn(t *testing.T) {
	ctx := context.Background()
	l := NewOrderedLedger()

	for i := range 200 {
		mustInsert(t, l, rec(fmt.Sprintf("r%d", i%50), float64((i*37)%1000)))
		if i%3 == 0 {
			l.Remove(ctx, fmt.Sprintf("r%d", (i*7)%50))
		}

		want := DefaultBestScoreFloor
		for _, r := range l.List(ctx) {
			want = math.Max(want, r.Score)
		}
		if got := l.BestScore(ctx); got != want {
			t.Fatalf("step %d: best %v, max of live records %v", i, got, want)
		}
	}
}
