package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/mebeatme/internal/domain/model"
)

// RunsDependencies defines the record operations used by the runs routes.
type RunsDependencies interface {
	AddRecord(ctx context.Context, run model.RunSubmission) (model.PerformanceRecord, error)
	GetRecord(ctx context.Context, id string) (model.PerformanceRecord, error)
	RemoveRecord(ctx context.Context, id string) bool
	CurrentBest(ctx context.Context) float64
}

// RunsHandler handles run upload and deletion.
type RunsHandler struct {
	deps RunsDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

type syncRunsResponse struct {
	Status  string                    `json:"status"`
	Message string                    `json:"message"`
	PPI     float64                   `json:"ppi"`
	Records []model.PerformanceRecord `json:"records"`
}

type deleteRunResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	BestPPI float64 `json:"bestPpi"`
}

// HandlePostRuns handles POST /sync/runs. Runs are stored one by one; the
// first invalid run stops the request and earlier runs stay stored.
func (h *RunsHandler) HandlePostRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_runs"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	runs, err := decodeRuns(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	stored := make([]model.PerformanceRecord, 0, len(runs))
	for _, run := range runs {
		rec, err := h.deps.AddRecord(r.Context(), run)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		stored = append(stored, rec)
	}

	writeJSON(w, http.StatusOK, syncRunsResponse{
		Status:  "success",
		Message: fmt.Sprintf("Synced %d runs", len(stored)),
		PPI:     stored[len(stored)-1].Score,
		Records: stored,
	})
}

// HandleRun handles GET and DELETE /sync/runs/{id}.
func (h *RunsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run"
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/sync/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if r.Method == http.MethodGet {
		h.getRun(w, r, id)
		return
	}
	h.deleteRun(w, r, id)
}

func (h *RunsHandler) getRun(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_run"
	rec, err := h.deps.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RunsHandler) deleteRun(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.delete_run"
	if !h.deps.RemoveRecord(r.Context(), id) {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, fmt.Errorf("run %q", id)))
		return
	}
	writeJSON(w, http.StatusOK, deleteRunResponse{
		Status:  "success",
		Message: fmt.Sprintf("Run %s deleted", id),
		BestPPI: h.deps.CurrentBest(r.Context()),
	})
}
