package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	service "github.com/okian/mebeatme/internal/app"
	"github.com/okian/mebeatme/internal/adapters/repository"
	"github.com/okian/mebeatme/internal/domain/model"
	"github.com/okian/mebeatme/internal/domain/scoring"
	"github.com/okian/mebeatme/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var fixedNow = time.UnixMilli(1_700_000_000_000)

func newTestService(opts ...service.Option) *service.Service {
	base := []service.Option{service.WithClock(func() time.Time { return fixedNow })}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then the best score is the floor and there are no records", func() {
			So(svc.CurrentBest(ctx), ShouldEqual, 131.5)
			So(svc.Floor(), ShouldEqual, 131.5)
			So(svc.ListRecords(ctx), ShouldBeEmpty)
			So(svc.GetStats()["formula"], ShouldEqual, scoring.FormulaCubic)
		})
	})

	Convey("Given a service with a custom floor", t, func() {
		svc := service.New(service.WithBestScoreFloor(50))

		Convey("Then the floor is used by the ledger", func() {
			So(svc.CurrentBest(context.Background()), ShouldEqual, 50.0)
		})
	})

	Convey("Given a service with an injected ledger", t, func() {
		ledger := repository.NewOrderedLedger(repository.WithFloor(10))
		svc := service.New(service.WithLedger(ledger), service.WithBestScoreFloor(99))

		Convey("Then the ledger's floor wins", func() {
			So(svc.Floor(), ShouldEqual, 10.0)
		})
	})
}

func TestService_AddRecord(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newTestService(service.WithIDGenerator(func() string { return "generated" }))

		Convey("When adding a run with id and timestamp", func() {
			rec, err := svc.AddRecord(ctx, model.RunSubmission{
				ID: "run-1", DistanceMeters: 5000, ElapsedSeconds: 755, StartedAtEpochMs: 42,
			})

			Convey("Then the record is scored and stored as given", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, "run-1")
				So(rec.ElapsedSeconds, ShouldEqual, 755)
				So(rec.TimestampMillis, ShouldEqual, int64(42))
				So(rec.Score, ShouldAlmostEqual, 1000, 1e-6)
				So(svc.CurrentBest(ctx), ShouldAlmostEqual, 1000, 1e-6)
			})
		})

		Convey("When adding a run without id and timestamp", func() {
			rec, err := svc.AddRecord(ctx, model.RunSubmission{DistanceMeters: 5940, ElapsedSeconds: 2498.9})

			Convey("Then both are generated and elapsed is truncated", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, "generated")
				So(rec.TimestampMillis, ShouldEqual, fixedNow.UnixMilli())
				So(rec.ElapsedSeconds, ShouldEqual, 2498)
				So(rec.Score, ShouldAlmostEqual, scoring.NewEngine().ScoreOf(5940, 2498.9), 1e-9)
			})

			Convey("Then a slow run leaves the floor as best", func() {
				So(rec.Score, ShouldBeLessThan, 131.5)
				So(svc.CurrentBest(ctx), ShouldEqual, 131.5)
			})
		})

		Convey("When adding invalid runs", func() {
			cases := []model.RunSubmission{
				{DistanceMeters: 0, ElapsedSeconds: 100},
				{DistanceMeters: -5, ElapsedSeconds: 100},
				{DistanceMeters: 5000, ElapsedSeconds: 0},
				{DistanceMeters: 5000, ElapsedSeconds: -1},
				{DistanceMeters: 5000, ElapsedSeconds: 0.4},
			}

			Convey("Then each one fails with ErrInvalidInput and nothing is stored", func() {
				for _, c := range cases {
					_, err := svc.AddRecord(ctx, c)
					So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				}
				So(svc.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When elapsed does not fit in whole int seconds", func() {
			_, err := svc.AddRecord(ctx, model.RunSubmission{ID: "huge", DistanceMeters: 5000, ElapsedSeconds: 1e19})

			Convey("Then it fails with ErrInvalidInput naming the bound", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "exceeds")
				So(svc.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When elapsed is just below the int bound", func() {
			rec, err := svc.AddRecord(ctx, model.RunSubmission{ID: "long", DistanceMeters: 5000, ElapsedSeconds: 9e18})

			Convey("Then it is stored with positive whole seconds", func() {
				So(err, ShouldBeNil)
				So(rec.ElapsedSeconds, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When adding the same id twice", func() {
			_, err := svc.AddRecord(ctx, model.RunSubmission{ID: "a", DistanceMeters: 5000, ElapsedSeconds: 700})
			So(err, ShouldBeNil)
			_, err = svc.AddRecord(ctx, model.RunSubmission{ID: "b", DistanceMeters: 5000, ElapsedSeconds: 900})
			So(err, ShouldBeNil)
			second, err := svc.AddRecord(ctx, model.RunSubmission{ID: "a", DistanceMeters: 5000, ElapsedSeconds: 1000})
			So(err, ShouldBeNil)

			Convey("Then the last write wins", func() {
				records := svc.ListRecords(ctx)
				So(records, ShouldHaveLength, 2)
				So(records[1], ShouldResemble, second)
				So(svc.CurrentBest(ctx), ShouldEqual, records[0].Score)
			})
		})
	})
}

func TestService_RemoveRecord(t *testing.T) {
	Convey("Given a service holding three runs", t, func() {
		ctx := context.Background()
		svc := newTestService()
		engine := scoring.NewEngine()
		for _, r := range []model.RunSubmission{
			{ID: "mid", DistanceMeters: 5000, ElapsedSeconds: 900},
			{ID: "top", DistanceMeters: 5000, ElapsedSeconds: 800},
			{ID: "low", DistanceMeters: 5000, ElapsedSeconds: 1000},
		} {
			_, err := svc.AddRecord(ctx, r)
			So(err, ShouldBeNil)
		}
		So(svc.CurrentBest(ctx), ShouldEqual, engine.ScoreOf(5000, 800))

		Convey("When the best record is removed", func() {
			removed := svc.RemoveRecord(ctx, "top")

			Convey("Then the best drops to the next record", func() {
				So(removed, ShouldBeTrue)
				So(svc.CurrentBest(ctx), ShouldEqual, engine.ScoreOf(5000, 900))
			})
		})

		Convey("When an unknown id is removed", func() {
			removed := svc.RemoveRecord(ctx, "ghost")

			Convey("Then nothing changes", func() {
				So(removed, ShouldBeFalse)
				So(svc.Count(ctx), ShouldEqual, 3)
			})
		})

		Convey("When every record is removed", func() {
			for _, id := range []string{"mid", "top", "low"} {
				So(svc.RemoveRecord(ctx, id), ShouldBeTrue)
			}

			Convey("Then the floor is reported", func() {
				So(svc.CurrentBest(ctx), ShouldEqual, 131.5)
			})
		})
	})
}

func TestService_ListRecordsIsACopy(t *testing.T) {
	Convey("Given a service with one record", t, func() {
		ctx := context.Background()
		svc := newTestService()
		rec, err := svc.AddRecord(ctx, model.RunSubmission{ID: "a", DistanceMeters: 10000, ElapsedSeconds: 1800})
		So(err, ShouldBeNil)

		Convey("When the returned slice is modified", func() {
			list := svc.ListRecords(ctx)
			list[0].Score = 1e9
			list[0].ID = "hacked"

			Convey("Then the stored record is unchanged", func() {
				if diff := cmp.Diff([]model.PerformanceRecord{rec}, svc.ListRecords(ctx)); diff != "" {
					t.Errorf("ledger mutated through list (-want +got):\n%s", diff)
				}
				So(svc.CurrentBest(ctx), ShouldEqual, rec.Score)
			})
		})
	})
}

func TestService_ReadModels(t *testing.T) {
	Convey("Given a service with runs over two distances", t, func() {
		ctx := context.Background()
		svc := newTestService()
		engine := scoring.NewEngine()
		runs := []model.RunSubmission{
			{ID: "5k-a", DistanceMeters: 5000, ElapsedSeconds: 900, StartedAtEpochMs: 100},
			{ID: "5k-b", DistanceMeters: 5000, ElapsedSeconds: 850, StartedAtEpochMs: 300},
			{ID: "10k", DistanceMeters: 10000, ElapsedSeconds: 2100, StartedAtEpochMs: 200},
		}
		for _, r := range runs {
			_, err := svc.AddRecord(ctx, r)
			So(err, ShouldBeNil)
		}

		Convey("When listing sessions", func() {
			sessions := svc.Sessions(ctx)

			Convey("Then they follow insertion order with buckets", func() {
				So(sessions, ShouldHaveLength, 3)
				So(sessions[0].ID, ShouldEqual, "5k-a")
				So(sessions[0].Duration, ShouldEqual, 900)
				So(sessions[0].Bucket, ShouldEqual, string(scoring.BucketKM3To8))
				So(sessions[2].Bucket, ShouldEqual, string(scoring.BucketKM8To15))
				So(sessions[2].CreatedAt, ShouldEqual, int64(200))
			})
		})

		Convey("When computing bests", func() {
			bests := svc.Bests(ctx)

			Convey("Then each label holds its maximum", func() {
				So(bests.Bests, ShouldHaveLength, 2)
				So(bests.Bests["5.00 km"], ShouldEqual, engine.ScoreOf(5000, 850))
				So(bests.Bests["10.00 km"], ShouldEqual, engine.ScoreOf(10000, 2100))
				So(bests.BestPPI, ShouldEqual, engine.ScoreOf(5000, 850))
				So(bests.CurrentBest, ShouldEqual, svc.CurrentBest(ctx))
				So(bests.Floor, ShouldEqual, 131.5)
				So(bests.LastUpdated, ShouldEqual, int64(300))
			})
		})

		Convey("When computing bests on an empty service", func() {
			bests := newTestService().Bests(ctx)

			Convey("Then only the floor is reported", func() {
				So(bests.Bests, ShouldBeEmpty)
				So(bests.BestPPI, ShouldEqual, 0.0)
				So(bests.CurrentBest, ShouldEqual, 131.5)
			})
		})
	})
}

func TestService_PreviewAndRequired(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newTestService()

		Convey("When previewing a baseline run", func() {
			res, err := svc.Preview(ctx, 10000, 1571)

			Convey("Then it scores 1000 and nothing is stored", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldAlmostEqual, 1000, 1e-6)
				So(res.Formula, ShouldEqual, scoring.FormulaCubic)
				So(svc.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When previewing invalid input", func() {
			_, err := svc.Preview(ctx, 5000, 0)

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When asking what 1000 points on 10 km need", func() {
			req, err := svc.Required(ctx, 10000, 1000)

			Convey("Then the baseline time and pace come back", func() {
				So(err, ShouldBeNil)
				So(req.ElapsedSeconds, ShouldAlmostEqual, 1571, 1e-3)
				So(req.PaceSecondsPerK, ShouldAlmostEqual, 157.1, 1e-3)
				So(req.BaselineSeconds, ShouldEqual, 1571.0)
			})
		})

		Convey("When asking what 500 points on 5.94 km need", func() {
			req, err := svc.Required(ctx, 5940, 500)

			Convey("Then the pace matches the engine's required pace", func() {
				So(err, ShouldBeNil)
				pace, err := scoring.NewEngine().RequiredPace(5940, 500)
				So(err, ShouldBeNil)
				So(req.PaceSecondsPerK, ShouldAlmostEqual, pace, 1e-9)
				So(req.PaceSecondsPerK, ShouldAlmostEqual, req.ElapsedSeconds/5.94, 1e-6)
			})
		})

		Convey("When asking with a non-positive target", func() {
			_, err := svc.Required(ctx, 10000, 0)

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service using the legacy formula", t, func() {
		svc := newTestService(service.WithEngine(scoring.NewEngine(scoring.WithFormula(scoring.LegacyClampedFormula{}))))
		rec, err := svc.AddRecord(context.Background(), model.RunSubmission{DistanceMeters: 5000, ElapsedSeconds: 5000})

		Convey("Then scores are clamped", func() {
			So(err, ShouldBeNil)
			So(rec.Score, ShouldEqual, 100.0)
			So(svc.GetStats()["formula"], ShouldEqual, scoring.FormulaLegacyClamped)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newTestService()
		ctx := context.Background()

		Convey("When importing before Start", func() {
			_, err := svc.SubmitImport(ctx, "b1", []model.RunSubmission{{DistanceMeters: 5000, ElapsedSeconds: 900}})

			Convey("Then ErrNotStarted is returned", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			svc.Stop()

			Convey("Then it ends stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_GetRecordAndCurve(t *testing.T) {
	Convey("Given a service with one record", t, func() {
		ctx := context.Background()
		svc := newTestService()
		rec, err := svc.AddRecord(ctx, model.RunSubmission{ID: "a", DistanceMeters: 5000, ElapsedSeconds: 1200})
		So(err, ShouldBeNil)

		Convey("When getting it by id", func() {
			got, err := svc.GetRecord(ctx, "a")

			Convey("Then the stored record comes back", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, rec)
			})
		})

		Convey("When getting an unknown id", func() {
			_, err := svc.GetRecord(ctx, "missing")

			Convey("Then it fails with ErrRecordNotFound", func() {
				So(errors.Is(err, service.ErrRecordNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading the curve", func() {
			curve := svc.Curve(ctx)

			Convey("Then it lists the five anchors and the floor", func() {
				So(curve.Formula, ShouldEqual, scoring.FormulaCubic)
				So(curve.Floor, ShouldEqual, 131.5)
				So(curve.Anchors, ShouldHaveLength, 5)
				So(curve.Anchors[0].DistanceMeters, ShouldEqual, 1500.0)
				So(curve.Anchors[4].DistanceMeters, ShouldEqual, 42195.0)
			})
		})
	})
}
