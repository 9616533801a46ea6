package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Formula names.
const (
	FormulaCubic         = "cubic"
	FormulaLegacyClamped = "legacy_clamped"
)

const (
	pointsAtBaseline = 1000.0
	legacyMinScore   = 100.0
	legacyMaxScore   = 2000.0
)

// Formula turns a baseline time and an elapsed time into a score.
// Implementations are pure; callers guarantee both arguments are positive.
type Formula interface {
	Name() string
	Score(baselineSeconds, elapsedSeconds float64) float64
}

// CubicFormula is 1000 * (baseline/elapsed)^3 with no clamping.
type CubicFormula struct{}

// Name implements Formula.
func (CubicFormula) Name() string { return FormulaCubic }

// Score implements Formula.
func (CubicFormula) Score(baselineSeconds, elapsedSeconds float64) float64 {
	r := baselineSeconds / elapsedSeconds
	return pointsAtBaseline * r * r * r
}

// LegacyClampedFormula is 1000 * (elapsed/baseline)^-2 clamped to [100, 2000].
// It is kept only for comparisons with historical scores.
type LegacyClampedFormula struct{}

// Name implements Formula.
func (LegacyClampedFormula) Name() string { return FormulaLegacyClamped }

// Score implements Formula.
func (LegacyClampedFormula) Score(baselineSeconds, elapsedSeconds float64) float64 {
	s := pointsAtBaseline * math.Pow(elapsedSeconds/baselineSeconds, -2)
	return math.Max(legacyMinScore, math.Min(legacyMaxScore, s))
}

// FormulaByName resolves a configured formula name.
func FormulaByName(name string) (Formula, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormulaCubic:
		return CubicFormula{}, nil
	case FormulaLegacyClamped:
		return LegacyClampedFormula{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, name)
	}
}
