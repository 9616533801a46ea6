package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mebeatme/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	distanceKindCount  = 5
)

// Distance and pace ranges. Paces are seconds per kilometre.
const (
	shortMin      = 1000.0
	shortRange    = 2000.0
	midMin        = 3000.0
	midRange      = 5000.0
	longMin       = 8000.0
	longRange     = 7000.0
	halfMin       = 15000.0
	halfRange     = 10000.0
	ultraMin      = 25000.0
	ultraRange    = 17195.0
	paceMin       = 170.0
	paceRange     = 310.0
	metersPerKm   = 1000.0
	minimumMillis = 1
)

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateRuns creates cfg.NumRuns runs with unique ids.
func generateRuns(ctx context.Context, cfg *Config, stats *Stats) ([]GeneratedRun, error) {
	logger.Get().Info(ctx, "generating runs", logger.Int("numRuns", cfg.NumRuns))

	now := time.Now()
	runs := make([]GeneratedRun, cfg.NumRuns)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during run generation: %w", err)
		}
		runs[i] = generateSingleRun(now.Add(-time.Duration(i) * time.Minute))
	}

	stats.RunsGenerated = len(runs)
	logger.Get().Info(ctx, "generated runs successfully", logger.Int("count", len(runs)))
	return runs, nil
}

// generateSingleRun picks a distance band, a distance inside it and a pace.
func generateSingleRun(startedAt time.Time) GeneratedRun {
	distance := generateDistance()
	pace := paceMin + getRandomFloat()*paceRange
	elapsed := math.Max(1, math.Round(distance/metersPerKm*pace))

	return GeneratedRun{
		ID:               "load_" + uuid.NewString(),
		DistanceMeters:   math.Round(distance),
		ElapsedSeconds:   elapsed,
		StartedAtEpochMs: max(startedAt.UnixMilli(), minimumMillis),
	}
}

func generateDistance() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(distanceKindCount))
	switch n.Int64() {
	case 0:
		return shortMin + getRandomFloat()*shortRange
	case 1:
		return midMin + getRandomFloat()*midRange
	case 2:
		return longMin + getRandomFloat()*longRange
	case 3:
		return halfMin + getRandomFloat()*halfRange
	default:
		return ultraMin + getRandomFloat()*ultraRange
	}
}
