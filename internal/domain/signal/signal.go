// Package signal maps raw signal-strength readings to distance estimates.
package signal

import "math"

// Default calibration constants for the log-distance path-loss model.
const (
	defaultReferencePowerDBM = -59.0 // expected reading at one unit of distance
	defaultPathLossExponent  = 2.0   // free-space attenuation
	pathLossScale            = 10.0
)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithReferencePower sets the calibrated reading at one unit of distance.
func WithReferencePower(dbm float64) Option {
	return func(e *Estimator) {
		e.referencePower = dbm
	}
}

// WithPathLossExponent sets the environment attenuation exponent.
func WithPathLossExponent(n float64) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.pathLossExponent = n
		}
	}
}

// Estimator converts signal-strength readings into distance estimates using
// the inverse log-distance path-loss model. It is stateless after
// construction and safe for concurrent use.
type Estimator struct {
	referencePower   float64
	pathLossExponent float64
}

// NewEstimator creates an Estimator with configuration options.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		referencePower:   defaultReferencePowerDBM,
		pathLossExponent: defaultPathLossExponent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EstimateDistance returns the estimated distance for a dBm-like reading.
// Any integer is a valid input; the result is never negative.
func (e *Estimator) EstimateDistance(reading int) float64 {
	d := math.Pow(pathLossScale, (e.referencePower-float64(reading))/(pathLossScale*e.pathLossExponent))
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return d
}

// MeanReading averages two readings on the dBm scale. The arbiter compares
// this mean against a room's threshold.
func MeanReading(a, b int) float64 {
	return (float64(a) + float64(b)) / 2
}
