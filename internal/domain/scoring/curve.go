package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Anchor is a reference (distance, elite time) point of the baseline curve.
type Anchor struct {
	DistanceMeters   float64
	EliteTimeSeconds float64
}

// DefaultAnchors is the reference elite table: 1500 m to the marathon.
var DefaultAnchors = []Anchor{ //nolint:gochecknoglobals // compiled-in table
	{DistanceMeters: 1500, EliteTimeSeconds: 210},
	{DistanceMeters: 5000, EliteTimeSeconds: 755},
	{DistanceMeters: 10000, EliteTimeSeconds: 1571},
	{DistanceMeters: 21097, EliteTimeSeconds: 3540},
	{DistanceMeters: 42195, EliteTimeSeconds: 7460},
}

// Curve maps a distance to its expected elite time by log-log interpolation
// between anchors. Distances outside the table clamp to the nearest anchor.
// A Curve is immutable and safe for concurrent use.
type Curve struct {
	anchors []Anchor
	// precomputed logs, same index as anchors
	logD []float64
	logT []float64
}

// NewCurve validates anchors (at least two, strictly increasing positive
// distances, positive times) and builds a Curve from a private copy.
func NewCurve(anchors []Anchor) (*Curve, error) {
	if len(anchors) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 anchors, got %d", ErrInvalidAnchors, len(anchors))
	}
	c := &Curve{
		anchors: make([]Anchor, len(anchors)),
		logD:    make([]float64, len(anchors)),
		logT:    make([]float64, len(anchors)),
	}
	copy(c.anchors, anchors)
	for i, a := range c.anchors {
		if !(a.DistanceMeters > 0) || !(a.EliteTimeSeconds > 0) {
			return nil, fmt.Errorf("%w: anchor %d must be positive", ErrInvalidAnchors, i)
		}
		if i > 0 && a.DistanceMeters <= c.anchors[i-1].DistanceMeters {
			return nil, fmt.Errorf("%w: distances must strictly increase at anchor %d", ErrInvalidAnchors, i)
		}
		c.logD[i] = math.Log(a.DistanceMeters)
		c.logT[i] = math.Log(a.EliteTimeSeconds)
	}
	return c, nil
}

// DefaultCurve returns the curve over DefaultAnchors.
func DefaultCurve() *Curve {
	c, err := NewCurve(DefaultAnchors)
	if err != nil {
		panic(err) // the compiled-in table is valid
	}
	return c
}

// Anchors returns a copy of the anchor table.
func (c *Curve) Anchors() []Anchor {
	out := make([]Anchor, len(c.anchors))
	copy(out, c.anchors)
	return out
}

// BaselineTime returns the expected elite time in seconds for distanceMeters.
func (c *Curve) BaselineTime(distanceMeters float64) float64 {
	last := len(c.anchors) - 1
	if distanceMeters <= c.anchors[0].DistanceMeters {
		return c.anchors[0].EliteTimeSeconds
	}
	if distanceMeters >= c.anchors[last].DistanceMeters {
		return c.anchors[last].EliteTimeSeconds
	}

	// first anchor strictly beyond the distance; hi is in [1, last]
	hi := sort.Search(len(c.anchors), func(i int) bool {
		return c.anchors[i].DistanceMeters > distanceMeters
	})
	lo := hi - 1
	if distanceMeters == c.anchors[lo].DistanceMeters {
		return c.anchors[lo].EliteTimeSeconds
	}

	ratio := (math.Log(distanceMeters) - c.logD[lo]) / (c.logD[hi] - c.logD[lo])
	return math.Exp(c.logT[lo] + ratio*(c.logT[hi]-c.logT[lo]))
}
