package scoring_test

import (
	"errors"
	"math"
	"testing"

	scoring "github.com/okian/mebeatme/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCurve_BaselineTime(t *testing.T) {
	Convey("Given the default baseline curve", t, func() {
		curve := scoring.DefaultCurve()

		Convey("When the distance is at or below the first anchor", func() {
			Convey("Then it clamps to the 1500 m time", func() {
				for _, d := range []float64{1, 400, 1499.99, 1500} {
					So(curve.BaselineTime(d), ShouldEqual, 210.0)
				}
			})
		})

		Convey("When the distance is at or beyond the marathon", func() {
			Convey("Then it clamps to the marathon time", func() {
				for _, d := range []float64{42195, 50000, 100000} {
					So(curve.BaselineTime(d), ShouldEqual, 7460.0)
				}
			})
		})

		Convey("When the distance is exactly an anchor", func() {
			Convey("Then the anchor time comes back", func() {
				So(curve.BaselineTime(5000), ShouldAlmostEqual, 755, 1e-9)
				So(curve.BaselineTime(10000), ShouldAlmostEqual, 1571, 1e-9)
				So(curve.BaselineTime(21097), ShouldAlmostEqual, 3540, 1e-9)
			})
		})

		Convey("When the distance lies between two anchors", func() {
			got := curve.BaselineTime(5940)

			Convey("Then it interpolates linearly in log-log space", func() {
				ratio := (math.Log(5940) - math.Log(5000)) / (math.Log(10000) - math.Log(5000))
				want := math.Exp(math.Log(755) + ratio*(math.Log(1571)-math.Log(755)))
				So(got, ShouldAlmostEqual, want, 1e-9)
				So(got, ShouldAlmostEqual, 905.81, 0.01)
				So(got, ShouldBeBetween, 755, 1571)
			})
		})

		Convey("Then baseline time grows with distance", func() {
			prev := 0.0
			for d := 1000.0; d <= 45000; d += 250 {
				cur := curve.BaselineTime(d)
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				prev = cur
			}
		})
	})
}

func TestNewCurve(t *testing.T) {
	Convey("Given anchor tables", t, func() {
		Convey("When there are fewer than two anchors", func() {
			_, err := scoring.NewCurve([]scoring.Anchor{{DistanceMeters: 5000, EliteTimeSeconds: 755}})
			So(errors.Is(err, scoring.ErrInvalidAnchors), ShouldBeTrue)
		})

		Convey("When distances are not strictly increasing", func() {
			_, err := scoring.NewCurve([]scoring.Anchor{
				{DistanceMeters: 5000, EliteTimeSeconds: 755},
				{DistanceMeters: 5000, EliteTimeSeconds: 800},
			})
			So(errors.Is(err, scoring.ErrInvalidAnchors), ShouldBeTrue)
		})

		Convey("When a time is not positive", func() {
			_, err := scoring.NewCurve([]scoring.Anchor{
				{DistanceMeters: 1000, EliteTimeSeconds: 0},
				{DistanceMeters: 5000, EliteTimeSeconds: 755},
			})
			So(errors.Is(err, scoring.ErrInvalidAnchors), ShouldBeTrue)
		})

		Convey("When the table is valid", func() {
			anchors := []scoring.Anchor{
				{DistanceMeters: 1000, EliteTimeSeconds: 100},
				{DistanceMeters: 10000, EliteTimeSeconds: 2000},
			}
			curve, err := scoring.NewCurve(anchors)
			So(err, ShouldBeNil)

			Convey("Then the curve keeps its own copy", func() {
				anchors[0].EliteTimeSeconds = 1
				So(curve.BaselineTime(500), ShouldEqual, 100.0)
				got := curve.Anchors()
				got[1].EliteTimeSeconds = 1
				So(curve.BaselineTime(20000), ShouldEqual, 2000.0)
			})
		})
	})
}
