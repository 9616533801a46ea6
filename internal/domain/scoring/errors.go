package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidAnchors   = errors.New("invalid baseline anchors")
	ErrUnknownFormula   = errors.New("unknown score formula")
	ErrNonPositiveInput = errors.New("distance and elapsed time must be positive")
)
