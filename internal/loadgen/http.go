package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mebeatme/pkg/logger"
)

// HTTPClient wraps http.Client with a per-request timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// maxFloat is a float64 that can be raised concurrently.
type maxFloat struct {
	bits atomic.Uint64
}

func (m *maxFloat) raise(v float64) {
	for {
		old := m.bits.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if m.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}

func (m *maxFloat) load() float64 { return math.Float64frombits(m.bits.Load()) }

// submitRuns posts runs one per request using a pool of cfg.Workers submitters.
func submitRuns(ctx context.Context, cfg *Config, runs []GeneratedRun, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting runs", logger.Int("runs", len(runs)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/sync/runs"

	var (
		stored    atomic.Int64
		failed    atomic.Int64
		submitted atomic.Int64
		best      maxFloat
		reportMu  sync.Mutex
		lastSeen  time.Time
	)

	runChan := make(chan GeneratedRun, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range runChan {
				if ctx.Err() != nil {
					continue
				}
				ppi, err := submitSingleRun(ctx, client, url, run)
				submitted.Add(1)
				if err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "run rejected", logger.String("id", run.ID), logger.Error(err))
					}
				} else {
					stored.Add(1)
					best.raise(ppi)
				}

				reportMu.Lock()
				if time.Since(lastSeen) >= progressInterval {
					lastSeen = time.Now()
					log.Info(ctx, "submission progress",
						logger.Int64("submitted", submitted.Load()),
						logger.Int("total", len(runs)),
						logger.Int64("stored", stored.Load()),
						logger.Int64("failed", failed.Load()))
				}
				reportMu.Unlock()
			}
		}()
	}

	go func() {
		defer close(runChan)
		for _, run := range runs {
			select {
			case <-ctx.Done():
				return
			case runChan <- run:
			}
		}
	}()

	wg.Wait()

	stats.RunsSubmitted = int(submitted.Load())
	stats.RunsStored = int(stored.Load())
	stats.RunsFailed = int(failed.Load())
	stats.MaxPPI = best.load()

	log.Info(ctx, "run submission completed",
		logger.Int("stored", stats.RunsStored),
		logger.Int("failed", stats.RunsFailed),
		logger.Float64("maxPpi", stats.MaxPPI))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}

// submitSingleRun posts one run and returns the score the server assigned.
func submitSingleRun(ctx context.Context, client *HTTPClient, url string, run GeneratedRun) (float64, error) {
	resp, err := client.Post(ctx, url, run)
	if err != nil {
		return 0, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var ack syncResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return ack.PPI, nil
}
