package repository

import "math"

// Option applies a configuration option to the OrderedLedger.
type Option func(*OrderedLedger)

// WithFloor overrides the best score floor. NaN and infinities are ignored.
func WithFloor(floor float64) Option {
	return func(l *OrderedLedger) {
		if !math.IsNaN(floor) && !math.IsInf(floor, 0) {
			l.floor = floor
		}
	}
}
