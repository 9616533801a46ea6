package api

import (
	"context"
	"net/http"

	"github.com/okian/mebeatme/internal/domain/types"
)

// SessionsDependencies defines the read models behind /sync/sessions and /sync/bests.
type SessionsDependencies interface {
	Sessions(ctx context.Context) []types.Session
	Bests(ctx context.Context) types.Bests
}

// SessionsHandler serves stored runs and best scores.
type SessionsHandler struct {
	deps SessionsDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionsDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type sessionsResponse struct {
	Status   string          `json:"status"`
	Sessions []types.Session `json:"sessions"`
	Count    int             `json:"count"`
}

type bestsResponse struct {
	Status string `json:"status"`
	types.Bests
}

// HandleGetSessions handles GET /sync/sessions.
func (h *SessionsHandler) HandleGetSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sessions := h.deps.Sessions(r.Context())
	writeJSON(w, http.StatusOK, sessionsResponse{Status: "success", Sessions: sessions, Count: len(sessions)})
}

// HandleGetBests handles GET /sync/bests.
func (h *SessionsHandler) HandleGetBests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, bestsResponse{Status: "success", Bests: h.deps.Bests(r.Context())})
}
