package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	service "github.com/okian/mebeatme/internal/app"
	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestServiceImport(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newTestService(service.WithImportWorkers(2), service.WithImportQueueSize(8))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a batch with one invalid run is imported", func() {
			id, err := svc.SubmitImport(ctx, "batch-1", []model.RunSubmission{
				{ID: "i1", DistanceMeters: 5000, ElapsedSeconds: 900},
				{ID: "i2", DistanceMeters: 0, ElapsedSeconds: 900},
				{ID: "i3", DistanceMeters: 21097, ElapsedSeconds: 4200},
			})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "batch-1")

			Convey("Then the valid runs are stored asynchronously", func() {
				So(waitFor(func() bool { return svc.GetStats()["importedBatches"] == int64(1) }), ShouldBeTrue)
				So(svc.Count(ctx), ShouldEqual, 2)
				So(svc.GetStats()["importedRuns"], ShouldEqual, int64(2))
				So(svc.GetStats()["importFailedRuns"], ShouldEqual, int64(1))
			})

			Convey("Then resubmitting the batch id is a duplicate", func() {
				_, err := svc.SubmitImport(ctx, "batch-1", []model.RunSubmission{{DistanceMeters: 5000, ElapsedSeconds: 900}})
				So(errors.Is(err, service.ErrDuplicateBatch), ShouldBeTrue)
			})
		})

		Convey("When a batch has no id", func() {
			id, err := svc.SubmitImport(ctx, "", []model.RunSubmission{{DistanceMeters: 3000, ElapsedSeconds: 600}})

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				So(id, ShouldStartWith, "batch_")
			})
		})

		Convey("When a batch is empty", func() {
			_, err := svc.SubmitImport(ctx, "empty", nil)

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the service stops with batches queued", func() {
			for i := range 5 {
				_, err := svc.SubmitImport(ctx, fmt.Sprintf("drain-%d", i), []model.RunSubmission{
					{ID: fmt.Sprintf("d%d", i), DistanceMeters: 10000, ElapsedSeconds: float64(1800 + i)},
				})
				So(err, ShouldBeNil)
			}
			svc.Stop()

			Convey("Then every queued batch is applied first", func() {
				So(svc.Count(ctx), ShouldEqual, 5)
			})
		})
	})

	Convey("Given a started service whose queue cannot keep up", t, func() {
		ctx := context.Background()
		release := make(chan struct{})
		gate := func() string { <-release; return fmt.Sprintf("gated-%d", time.Now().UnixNano()) }
		svc := newTestService(
			service.WithImportWorkers(1),
			service.WithImportQueueSize(1),
			service.WithIDGenerator(gate),
		)
		So(svc.Start(ctx), ShouldBeNil)
		runs := []model.RunSubmission{{DistanceMeters: 5000, ElapsedSeconds: 900}}

		// The worker blocks inside the id generator on the first batch and the
		// queue forwarder holds the second, so the third fills the buffer and
		// the fourth is refused.
		drained := func() bool { return svc.GetStats()["importQueueLength"] == 0 }
		_, err := svc.SubmitImport(ctx, "first", runs)
		So(err, ShouldBeNil)
		So(waitFor(drained), ShouldBeTrue)
		_, err = svc.SubmitImport(ctx, "second", runs)
		So(err, ShouldBeNil)
		So(waitFor(drained), ShouldBeTrue)
		_, err = svc.SubmitImport(ctx, "third", runs)
		So(err, ShouldBeNil)
		_, err = svc.SubmitImport(ctx, "fourth", runs)

		Convey("Then backpressure is reported and the id can be retried", func() {
			So(errors.Is(err, service.ErrImportBackpressure), ShouldBeTrue)

			close(release)
			So(waitFor(func() bool { return svc.GetStats()["importedBatches"] == int64(3) }), ShouldBeTrue)
			_, err = svc.SubmitImport(ctx, "fourth", runs)
			So(err, ShouldBeNil)
			svc.Stop()
			So(svc.Count(ctx), ShouldEqual, 4)
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given many concurrent writers with unique ids and distinct scores", t, func() {
		ctx := context.Background()
		svc := newTestService()
		engine := scoring.NewEngine()

		const n = 64
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddRecord(ctx, model.RunSubmission{
					ID:             fmt.Sprintf("run-%02d", i),
					DistanceMeters: 5000,
					ElapsedSeconds: float64(700 + i),
				})
				if err != nil {
					t.Errorf("add run-%02d: %v", i, err)
				}
			}()
		}

		// Readers run alongside and must never see best below a listed score.
		stop := make(chan struct{})
		var readers sync.WaitGroup
		var torn int
		var tornMu sync.Mutex
		for range 4 {
			readers.Add(1)
			go func() {
				defer readers.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					bests := svc.Bests(ctx)
					if bests.BestPPI > bests.CurrentBest {
						tornMu.Lock()
						torn++
						tornMu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
		close(stop)
		readers.Wait()

		Convey("Then no update is lost", func() {
			So(torn, ShouldEqual, 0)
			So(svc.Count(ctx), ShouldEqual, n)
			So(svc.CurrentBest(ctx), ShouldEqual, engine.ScoreOf(5000, 700))
		})

		Convey("When the top record is removed", func() {
			So(svc.RemoveRecord(ctx, "run-00"), ShouldBeTrue)

			Convey("Then the second highest score is the best", func() {
				So(svc.CurrentBest(ctx), ShouldEqual, engine.ScoreOf(5000, 701))
			})
		})
	})

	Convey("Given concurrent adds and removes on overlapping ids", t, func() {
		ctx := context.Background()
		svc := newTestService()

		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 50 {
					id := fmt.Sprintf("r%d", (w*50+i)%20)
					if i%4 == 3 {
						svc.RemoveRecord(ctx, id)
						continue
					}
					_, _ = svc.AddRecord(ctx, model.RunSubmission{
						ID: id, DistanceMeters: 10000, ElapsedSeconds: float64(1500 + (w*37+i*11)%600),
					})
				}
			}()
		}
		wg.Wait()

		Convey("Then the best equals the maximum over what is left", func() {
			records := svc.ListRecords(ctx)
			scores := make([]float64, 0, len(records))
			for _, r := range records {
				scores = append(scores, r.Score)
			}
			sort.Float64s(scores)
			want := 131.5
			if len(scores) > 0 && scores[len(scores)-1] > want {
				want = scores[len(scores)-1]
			}
			So(svc.CurrentBest(ctx), ShouldEqual, want)
		})
	})
}
