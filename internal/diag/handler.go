package diag

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves the /debug/blocked diagnostic endpoint.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler wraps registry for HTTP exposure.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry, logger: slog.Default().With("component", "diag")}
}

// Blocked writes the current snapshot of blocked queries and cursors as
// JSON.
func (h *Handler) Blocked(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
