package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/mebeatme/internal/app"
	"github.com/okian/mebeatme/internal/domain/model"
)

// ImportDependencies defines the asynchronous import entry point.
type ImportDependencies interface {
	// SubmitImport queues runs and returns the (possibly generated) batch id.
	SubmitImport(ctx context.Context, batchID string, runs []model.RunSubmission) (string, error)
}

// ImportHandler handles bulk imports.
type ImportHandler struct {
	deps ImportDependencies
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps ImportDependencies) *ImportHandler {
	return &ImportHandler{deps: deps}
}

type importRequest struct {
	BatchID string          `json:"batchId,omitempty"`
	Runs    json.RawMessage `json:"runs"`
}

type ackResponse struct {
	Status    string `json:"status"`
	BatchID   string `json:"batchId"`
	Runs      int    `json:"runs"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostImport handles POST /sync/import. The batch is applied by the
// import workers; a repeated batch id is acknowledged without queueing again.
func (h *ImportHandler) HandlePostImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_import"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	runs, err := decodeRuns(req.Runs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	batchID, err := h.deps.SubmitImport(r.Context(), req.BatchID, runs)
	switch {
	case errors.Is(err, service.ErrDuplicateBatch):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", BatchID: batchID, Runs: len(runs), Duplicate: true})
	case err != nil:
		writeServiceError(w, op, err)
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", BatchID: batchID, Runs: len(runs)})
	}
}
