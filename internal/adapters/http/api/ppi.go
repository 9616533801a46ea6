package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/mebeatme/internal/domain/scoring"
	"github.com/okian/mebeatme/internal/domain/types"
)

// PPIDependencies defines the scoring queries that do not touch the ledger.
type PPIDependencies interface {
	Preview(ctx context.Context, distanceMeters, elapsedSeconds float64) (scoring.Result, error)
	Required(ctx context.Context, distanceMeters, targetScore float64) (types.Required, error)
	Curve(ctx context.Context) types.Curve
}

// PPIHandler serves score previews and targets.
type PPIHandler struct {
	deps PPIDependencies
}

// NewPPIHandler creates a new PPI handler.
func NewPPIHandler(deps PPIDependencies) *PPIHandler {
	return &PPIHandler{deps: deps}
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// HandleGetScore handles GET /ppi/score?distance=&elapsed=.
func (h *PPIHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	distance, err := floatParam(r, "distance")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	elapsed, err := floatParam(r, "elapsed")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Preview(r.Context(), distance, elapsed)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetRequired handles GET /ppi/required?distance=&score=.
func (h *PPIHandler) HandleGetRequired(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_required"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	distance, err := floatParam(r, "distance")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	score, err := floatParam(r, "score")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := h.deps.Required(r.Context(), distance, score)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleGetCurve handles GET /ppi/curve.
func (h *PPIHandler) HandleGetCurve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Curve(r.Context()))
}
