package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"urbanflow/internal/delays"
	"urbanflow/internal/export"
	"urbanflow/internal/validate"
)

type delaysResponse struct {
	StopID     int                     `json:"stopId"`
	Count      int                     `json:"count"`
	Delays     []delays.FormattedDelay `json:"delays"`
	Summary    delays.Summary          `json:"summary"`
	LastUpdate time.Time               `json:"lastUpdate"`
}

func (h *Handler) loadDelays(ctx context.Context, stopID int) (delaysResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ds, err := h.delays.DelaysForStop(ctx, stopID)
	if err != nil {
		return delaysResponse{}, err
	}
	return delaysResponse{
		StopID:     stopID,
		Count:      len(ds),
		Delays:     ds,
		Summary:    delays.Summarize(ds),
		LastUpdate: time.Now().UTC(),
	}, nil
}

// GetDelays handles GET /api/delays/{stopId}.
func (h *Handler) GetDelays(w http.ResponseWriter, r *http.Request) {
	stopID, err := validate.StopID(chi.URLParam(r, "stopId"))
	if err != nil {
		h.writeUpstreamError(w, r, "get delays", err)
		return
	}

	resp, err := h.loadDelays(r.Context(), stopID)
	if err != nil {
		h.writeUpstreamError(w, r, "get delays", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportDelays handles GET /api/delays/{stopId}/export.csv.
func (h *Handler) ExportDelays(w http.ResponseWriter, r *http.Request) {
	stopID, err := validate.StopID(chi.URLParam(r, "stopId"))
	if err != nil {
		h.writeUpstreamError(w, r, "export delays", err)
		return
	}

	resp, err := h.loadDelays(r.Context(), stopID)
	if err != nil {
		h.writeUpstreamError(w, r, "export delays", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="delays-%d.csv"`, stopID))
	if err := export.WriteDelays(w, stopID, resp.Delays); err != nil {
		h.logger.Error("writing delays csv", "error", err)
	}
}

// StreamDelays streams normalized delays for a stop via Server-Sent Events.
// A "delays" event is sent immediately and then every StreamInterval.
func (h *Handler) StreamDelays(w http.ResponseWriter, r *http.Request) {
	stopID, err := validate.StopID(chi.URLParam(r, "stopId"))
	if err != nil {
		h.writeUpstreamError(w, r, "stream delays", err)
		return
	}
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	h.sendDelaysEvent(ctx, w, flusher, stopID)

	ticker := time.NewTicker(h.cfg.StreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sendDelaysEvent(ctx, w, flusher, stopID)
		case <-ctx.Done():
			return
		}
	}
}

// sendDelaysEvent writes one SSE event. Upstream failures are sent as an "error" event.
func (h *Handler) sendDelaysEvent(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, stopID int) {
	event := "delays"
	var payload any
	resp, err := h.loadDelays(ctx, stopID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("SSE delays refresh failed", "stop_id", stopID, "error", err)
		event = "error"
		payload = ErrorResponse{Error: "ZTM API is currently unavailable"}
	} else {
		payload = resp
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		h.logger.Error("encoding SSE payload", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", bytes.TrimRight(buf.Bytes(), "\n"))
	flusher.Flush()
}
