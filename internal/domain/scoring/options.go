package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCurve replaces the default anchor curve.
func WithCurve(c *Curve) Option {
	return func(e *Engine) {
		if c != nil {
			e.curve = c
		}
	}
}

// WithFormula replaces the cubic formula.
func WithFormula(f Formula) Option {
	return func(e *Engine) {
		if f != nil {
			e.formula = f
		}
	}
}
