// Package model contains domain models passed between layers.
package model

import "time"

// PerformanceRecord is a scored run held by the ledger. Records are never
// mutated in place; a change is a remove followed by an insert.
type PerformanceRecord struct {
	ID              string  `json:"id"`
	DistanceMeters  float64 `json:"distanceMeters"`
	ElapsedSeconds  int     `json:"elapsedSeconds"`
	Score           float64 `json:"ppi"`
	TimestampMillis int64   `json:"createdAt"`
}

// RunSubmission is a run as received from a client. ID and StartedAtEpochMs
// are optional; zero values mean "generate" and "now".
type RunSubmission struct {
	ID               string  `json:"id,omitempty"`
	DistanceMeters   float64 `json:"distanceMeters"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
	StartedAtEpochMs int64   `json:"startedAtEpochMs,omitempty"`
}

// ImportJob is a batch of runs applied asynchronously.
type ImportJob struct {
	BatchID    string
	Runs       []RunSubmission
	EnqueuedAt time.Time
}
