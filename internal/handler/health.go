package handler

import (
	"context"
	"net/http"
	"time"
)

// Health handles GET /health. It reports database connectivity and the
// stop cache state, and answers 503 when the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	database := "connected"
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health: database ping failed", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
		database = "unreachable"
	}

	stats := h.catalog.Stats()
	cache := map[string]any{"cached": len(stats.Keys) > 0}
	if stats.Snapshot != nil {
		cache["stops"] = stats.Snapshot.Count
		cache["date"] = stats.Snapshot.Date
		cache["expiresAt"] = stats.Snapshot.ExpiresAt
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"database":  database,
		"cache":     cache,
	})
}

// Healthz handles GET /healthz, a liveness probe with no dependencies.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
