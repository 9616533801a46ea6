// Package scoring computes performance scores (PPI) for running efforts.
//
// A run is compared with an elite baseline time for its distance, taken from
// a log-log interpolated anchor curve, and the ratio is turned into points by
// a Formula. Running the baseline time scores exactly 1000 with the default
// cubic formula.
package scoring

import (
	"context"
	"fmt"
)

const (
	requiredTimeIterations = 50
	requiredTimeLowerBound = 0.1
	requiredTimeSpan       = 3.0 // upper bound as a multiple of the baseline
	metersPerKilometer     = 1000.0
)

// Input is one effort to score.
type Input struct {
	DistanceMeters float64
	ElapsedSeconds float64
}

// Result is the scored effort.
type Result struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
	BaselineSeconds float64 `json:"baselineSeconds"`
	Score           float64 `json:"ppi"`
	Ratio           float64 `json:"performanceRatio"`
	Bucket          Bucket  `json:"bucket"`
	Formula         string  `json:"formula"`
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// Engine implements Scorer over a Curve and a Formula. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	curve   *Curve
	formula Formula
}

// NewEngine builds an engine with the default curve and the cubic formula
// unless options say otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		curve:   DefaultCurve(),
		formula: CubicFormula{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Curve returns the engine's baseline curve.
func (e *Engine) Curve() *Curve { return e.curve }

// Formula returns the engine's formula.
func (e *Engine) Formula() Formula { return e.formula }

// BaselineTime returns the baseline for distanceMeters.
func (e *Engine) BaselineTime(distanceMeters float64) float64 {
	return e.curve.BaselineTime(distanceMeters)
}

// ScoreOf scores a run without context checks. Both arguments must be positive.
func (e *Engine) ScoreOf(distanceMeters, elapsedSeconds float64) float64 {
	return e.formula.Score(e.curve.BaselineTime(distanceMeters), elapsedSeconds)
}

// Score implements Scorer.
func (e *Engine) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	ratio, err := e.PerformanceRatio(in.DistanceMeters, in.ElapsedSeconds)
	if err != nil {
		return Result{}, fmt.Errorf("%w: distance=%v elapsed=%v", err, in.DistanceMeters, in.ElapsedSeconds)
	}
	baseline := e.curve.BaselineTime(in.DistanceMeters)
	return Result{
		DistanceMeters:  in.DistanceMeters,
		ElapsedSeconds:  in.ElapsedSeconds,
		BaselineSeconds: baseline,
		Score:           e.formula.Score(baseline, in.ElapsedSeconds),
		Ratio:           ratio,
		Bucket:          BucketFor(in.DistanceMeters),
		Formula:         e.formula.Name(),
	}, nil
}

// PerformanceRatio is baseline/elapsed; 1.0 means the elite baseline was matched.
func (e *Engine) PerformanceRatio(distanceMeters, elapsedSeconds float64) (float64, error) {
	if !(distanceMeters > 0) || !(elapsedSeconds > 0) {
		return 0, ErrNonPositiveInput
	}
	return e.curve.BaselineTime(distanceMeters) / elapsedSeconds, nil
}

// RequiredTime finds the elapsed time that scores targetScore over
// distanceMeters by bisection on [0.1, 3*baseline]. Scores are monotone
// decreasing in time, so the search narrows toward the target; a target the
// formula cannot reach inside the bracket resolves to the nearest bound.
func (e *Engine) RequiredTime(distanceMeters, targetScore float64) (float64, error) {
	if !(distanceMeters > 0) || !(targetScore > 0) {
		return 0, ErrNonPositiveInput
	}
	baseline := e.curve.BaselineTime(distanceMeters)
	lo, hi := requiredTimeLowerBound, baseline*requiredTimeSpan
	for range requiredTimeIterations {
		mid := (lo + hi) / 2
		if e.formula.Score(baseline, mid) > targetScore {
			lo = mid // too fast, allow more time
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// RequiredPace returns the pace in seconds per kilometer needed to reach targetScore.
func (e *Engine) RequiredPace(distanceMeters, targetScore float64) (float64, error) {
	t, err := e.RequiredTime(distanceMeters, targetScore)
	if err != nil {
		return 0, err
	}
	return t / (distanceMeters / metersPerKilometer), nil
}
