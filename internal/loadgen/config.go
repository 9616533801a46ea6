// Package loadgen drives a running server with generated runs and checks
// that the reported best score agrees with what was submitted.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumRuns    int           // Number of runs to generate
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional JSON dump of generated runs
	Verbose    bool          // Log every failed request
}

// GeneratedRun is one generated run in the wire shape accepted by POST /sync/runs.
type GeneratedRun struct {
	ID               string  `json:"id"`
	DistanceMeters   float64 `json:"distanceMeters"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
	StartedAtEpochMs int64   `json:"startedAtEpochMs"`
}

type syncResponse struct {
	Status string  `json:"status"`
	PPI    float64 `json:"ppi"`
}

type bestsResponse struct {
	BestPPI     float64 `json:"bestPpi"`
	CurrentBest float64 `json:"currentBest"`
	Floor       float64 `json:"floor"`
}

type session struct {
	ID  string  `json:"id"`
	PPI float64 `json:"ppi"`
}

type sessionsResponse struct {
	Sessions []session `json:"sessions"`
	Count    int       `json:"count"`
}

type deleteResponse struct {
	Status  string  `json:"status"`
	BestPPI float64 `json:"bestPpi"`
}

// Stats holds load run statistics.
type Stats struct {
	RunsGenerated int
	RunsSubmitted int
	RunsStored    int
	RunsFailed    int
	// MaxPPI is the highest score the server returned for a stored run.
	MaxPPI      float64
	BestPPI     float64
	CurrentBest float64
	Sessions    int
	// RemovedID is the top session deleted to exercise the best-score recompute.
	RemovedID string
	BestAfter float64
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
