package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/logging"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db  pinger
	now func() time.Time
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports down when the ledger database is unreachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, httpStatus := "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("readiness check failed: database unreachable", "error", err)
		status, httpStatus = "down", http.StatusServiceUnavailable
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"database": status,
		},
	})
}
