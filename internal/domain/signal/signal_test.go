package signal_test

import (
	"testing"

	"github.com/okian/proxtag/internal/domain/signal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEstimateDistance(t *testing.T) {
	Convey("Given an estimator with default calibration", t, func() {
		est := signal.NewEstimator()

		Convey("When estimating at the reference power", func() {
			d := est.EstimateDistance(-59)

			Convey("Then the distance should be one unit", func() {
				So(d, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When the reading is stronger than the reference", func() {
			d := est.EstimateDistance(-40)

			Convey("Then the player should be closer than one unit", func() {
				So(d, ShouldBeGreaterThan, 0)
				So(d, ShouldBeLessThan, 1)
			})
		})

		Convey("When the reading is weaker than the reference", func() {
			near := est.EstimateDistance(-70)
			far := est.EstimateDistance(-90)

			Convey("Then weaker readings should map to larger distances", func() {
				So(far, ShouldBeGreaterThan, near)
				So(near, ShouldBeGreaterThan, 1)
			})
		})

		Convey("When sweeping the whole plausible input range", func() {
			Convey("Then no reading should yield a negative distance", func() {
				for r := -127; r <= 127; r++ {
					So(est.EstimateDistance(r), ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})
	})

	Convey("Given an estimator with custom calibration", t, func() {
		est := signal.NewEstimator(
			signal.WithReferencePower(-50),
			signal.WithPathLossExponent(3.0),
		)

		Convey("When estimating at the custom reference power", func() {
			Convey("Then the distance should still be one unit", func() {
				So(est.EstimateDistance(-50), ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When a non-positive exponent is supplied", func() {
			bad := signal.NewEstimator(signal.WithPathLossExponent(0))

			Convey("Then the default exponent should be kept and results stay sane", func() {
				So(bad.EstimateDistance(-80), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMeanReading(t *testing.T) {
	Convey("Given two signal readings", t, func() {
		Convey("When averaging -60 and -62", func() {
			So(signal.MeanReading(-60, -62), ShouldEqual, -61)
		})

		Convey("When averaging readings of odd sum", func() {
			So(signal.MeanReading(-60, -61), ShouldEqual, -60.5)
		})
	})
}
