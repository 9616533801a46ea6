// Package types contains read models shared by the service and the HTTP layer.
package types

// Session is one stored run as listed by GET /sync/sessions.
type Session struct {
	ID        string  `json:"id"`
	Distance  float64 `json:"distance"`
	Duration  int     `json:"duration"`
	PPI       float64 `json:"ppi"`
	Bucket    string  `json:"bucket"`
	CreatedAt int64   `json:"createdAt"`
}

// Bests summarizes best scores by distance label (e.g. "5.94 km").
type Bests struct {
	Bests map[string]float64 `json:"bests"`
	// BestPPI is the best over live records only; 0 when there are none.
	BestPPI float64 `json:"bestPpi"`
	// CurrentBest includes the configured floor.
	CurrentBest float64 `json:"currentBest"`
	Floor       float64 `json:"floor"`
	LastUpdated int64   `json:"lastUpdated"`
}

// Required is the effort needed to reach a target score.
type Required struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	TargetScore     float64 `json:"targetScore"`
	ElapsedSeconds  float64 `json:"requiredSeconds"`
	PaceSecondsPerK float64 `json:"requiredPaceSecPerKm"`
	BaselineSeconds float64 `json:"baselineSeconds"`
}

// Anchor is one reference point of the baseline curve.
type Anchor struct {
	DistanceMeters   float64 `json:"distanceMeters"`
	EliteTimeSeconds float64 `json:"eliteTimeSeconds"`
}

// Curve is the scoring law reported by GET /ppi/curve.
type Curve struct {
	Formula string   `json:"formula"`
	Floor   float64  `json:"floor"`
	Anchors []Anchor `json:"anchors"`
}
