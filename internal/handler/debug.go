package handler

import (
	"net/http"
	"strconv"
	"time"

	"urbanflow/internal/stops"
	"urbanflow/internal/templates"
)

// CacheDebug handles GET /debug/cache, an HTML view of the stop cache stats.
func (h *Handler) CacheDebug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := cacheDebugData(h.catalog.Stats(), time.Now())
	if err := templates.CacheDebugPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering cache debug page", "error", err)
	}
}

func cacheDebugData(s stops.Stats, now time.Time) templates.CacheDebugData {
	count := func(label string, n uint64) templates.CacheStatRow {
		return templates.CacheStatRow{Label: label, Value: strconv.FormatUint(n, 10)}
	}
	d := templates.CacheDebugData{
		Counters: []templates.CacheStatRow{
			{Label: "Keys", Value: strconv.Itoa(len(s.Keys))},
			count("Hits", s.Hits),
			count("Misses", s.Misses),
			count("Sets", s.Sets),
			count("Deletes", s.Deletes),
			count("Refreshes", s.Refreshes),
			count("Coalesced", s.Coalesced),
			count("Failures", s.Failures),
		},
	}
	if snap := s.Snapshot; snap != nil {
		d.Snapshot = []templates.CacheStatRow{
			{Label: "ID", Value: snap.ID.String()},
			{Label: "Service date", Value: snap.Date},
			{Label: "Upstream update", Value: snap.LastUpdate},
			{Label: "Stops", Value: strconv.Itoa(snap.Count)},
			{Label: "Created", Value: snap.CreatedAt.Format(time.RFC3339)},
			{Label: "Expires", Value: snap.ExpiresAt.Format(time.RFC3339)},
			{Label: "Expires in", Value: snap.ExpiresAt.Sub(now).Round(time.Second).String()},
			{Label: "Stale", Value: strconv.FormatBool(snap.Stale)},
		}
	}
	return d
}
