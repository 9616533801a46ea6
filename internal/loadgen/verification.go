package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"github.com/okian/mebeatme/pkg/logger"
)

// verifyResults reads the server's view back and checks it against what was stored.
// Other clients may have stored runs too, so the stored-side checks are lower bounds.
func verifyResults(ctx context.Context, cfg *Config, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	client := newHTTPClient(cfg.Timeout)

	bests, sessions, err := readState(ctx, client, cfg.BaseURL)
	if err != nil {
		return err
	}

	stats.BestPPI = bests.BestPPI
	stats.CurrentBest = bests.CurrentBest
	stats.Sessions = sessions.Count

	if err := checkConsistency(stats, bests.Floor); err != nil {
		return err
	}
	if len(sessions.Sessions) == 0 {
		return nil
	}
	return verifyRecompute(ctx, client, cfg.BaseURL, sessions.Sessions, bests.Floor, stats)
}

func readState(ctx context.Context, client *HTTPClient, baseURL string) (bestsResponse, sessionsResponse, error) {
	var bests bestsResponse
	if err := client.getJSON(ctx, baseURL+"/sync/bests", &bests); err != nil {
		return bestsResponse{}, sessionsResponse{}, fmt.Errorf("bests: %w", err)
	}
	var sessions sessionsResponse
	if err := client.getJSON(ctx, baseURL+"/sync/sessions", &sessions); err != nil {
		return bestsResponse{}, sessionsResponse{}, fmt.Errorf("sessions: %w", err)
	}
	return bests, sessions, nil
}

func checkConsistency(stats *Stats, floor float64) error {
	if stats.Sessions < stats.RunsStored {
		return fmt.Errorf("server lists %d sessions, expected at least %d", stats.Sessions, stats.RunsStored)
	}
	if stats.RunsStored > 0 && stats.BestPPI+scoreTolerance < stats.MaxPPI {
		return fmt.Errorf("best ppi %.3f is below the highest stored score %.3f", stats.BestPPI, stats.MaxPPI)
	}
	if want := math.Max(floor, stats.BestPPI); math.Abs(stats.CurrentBest-want) > scoreTolerance {
		return fmt.Errorf("current best %.3f, expected max(floor, best) = %.3f", stats.CurrentBest, want)
	}
	return nil
}

// verifyRecompute deletes the top session and checks the server falls back to
// the next best, or to the floor when nothing scores above it.
func verifyRecompute(ctx context.Context, client *HTTPClient, baseURL string, sessions []session, floor float64, stats *Stats) error {
	top := lo.MaxBy(sessions, func(a, b session) bool { return a.PPI > b.PPI })
	rest := lo.Reject(sessions, func(s session, _ int) bool { return s.ID == top.ID })
	want := math.Max(floor, lo.Max(lo.Map(rest, func(s session, _ int) float64 { return s.PPI })))

	resp, err := client.Delete(ctx, baseURL+"/sync/runs/"+url.PathEscape(top.ID))
	if err != nil {
		return fmt.Errorf("delete %s: %w", top.ID, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("delete %s: %w", top.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete %s: HTTP %d: %s", top.ID, resp.StatusCode, string(body))
	}
	var ack deleteResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("delete %s: failed to parse response: %w", top.ID, err)
	}
	if math.Abs(ack.BestPPI-want) > scoreTolerance {
		return fmt.Errorf("delete %s reported best %.3f, expected %.3f", top.ID, ack.BestPPI, want)
	}

	var bests bestsResponse
	if err := client.getJSON(ctx, baseURL+"/sync/bests", &bests); err != nil {
		return fmt.Errorf("bests after delete: %w", err)
	}

	stats.RemovedID = top.ID
	stats.BestAfter = bests.CurrentBest
	if math.Abs(bests.CurrentBest-want) > scoreTolerance {
		return fmt.Errorf("best after removing %s is %.3f, expected %.3f", top.ID, bests.CurrentBest, want)
	}

	logger.Get().Info(ctx, "best score recomputed after delete",
		logger.String("removed", top.ID),
		logger.Float64("removedPpi", top.PPI),
		logger.Float64("currentBest", bests.CurrentBest))
	return nil
}
