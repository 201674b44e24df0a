package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"urbanflow/internal/export"
	"urbanflow/internal/geocode"
	"urbanflow/internal/stops"
	"urbanflow/internal/validate"
)

const (
	defaultNearbyRadius = 500.0
	maxNearbyRadius     = 5000.0
	defaultNearbyLimit  = 20
	maxNearbyLimit      = 100
)

// ListStops handles GET /api/stops.
func (h *Handler) ListStops(w http.ResponseWriter, r *http.Request) {
	all, err := h.catalog.Stops(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, "list stops", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(all),
		"stops": all,
	})
}

// SearchStops handles GET /api/stops/search?q=.
func (h *Handler) SearchStops(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(query) < stops.MinQueryLength {
		writeError(w, http.StatusBadRequest, "Query parameter q must be at least 2 characters long")
		return
	}

	results, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		h.writeUpstreamError(w, r, "search stops", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"count": len(results),
		"stops": results,
	})
}

type nearbyResult struct {
	stops.NearbyStop
	Distance string `json:"distance"`
}

// NearbyStops handles GET /api/stops/nearby?lat=&lon=&radius=&limit=.
// An address parameter may replace lat and lon.
func (h *Handler) NearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var location *geocode.Result
	var lat, lon float64
	if address := strings.TrimSpace(q.Get("address")); address != "" && q.Get("lat") == "" && q.Get("lon") == "" {
		res, ok := h.geocodeAddress(w, r, address)
		if !ok {
			return
		}
		location = &res
		lat, lon = res.Lat, res.Lon
	} else {
		var errLat, errLon error
		lat, errLat = strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon = strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
			return
		}
	}

	radius := defaultNearbyRadius
	if v := q.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number of meters")
			return
		}
		radius = math.Min(parsed, maxNearbyRadius)
	}

	limit := defaultNearbyLimit
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxNearbyLimit)
	}

	found, err := h.catalog.Nearby(r.Context(), lat, lon, radius, limit)
	if err != nil {
		h.writeUpstreamError(w, r, "nearby stops", err)
		return
	}

	results := make([]nearbyResult, len(found))
	for i, ns := range found {
		results[i] = nearbyResult{NearbyStop: ns, Distance: formatDistance(ns.DistanceMeters)}
	}
	resp := map[string]any{
		"count": len(results),
		"stops": results,
	}
	if location != nil {
		resp["location"] = location
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) geocodeAddress(w http.ResponseWriter, r *http.Request, address string) (geocode.Result, bool) {
	if h.geo == nil {
		writeError(w, http.StatusBadRequest, "Address search is disabled")
		return geocode.Result{}, false
	}
	if utf8.RuneCountInString(address) > 200 {
		writeError(w, http.StatusBadRequest, "address must be at most 200 characters long")
		return geocode.Result{}, false
	}
	res, err := h.geo.Search(r.Context(), address)
	if errors.Is(err, geocode.ErrNoResult) {
		writeError(w, http.StatusNotFound, "Address not found")
		return geocode.Result{}, false
	}
	if err != nil {
		h.logger.Error("geocoding failed", "address", address, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Address search is currently unavailable")
		return geocode.Result{}, false
	}
	return res, true
}

// formatDistance renders meters as "350 m" below a kilometer and "1.2 km" above.
func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// GetStop handles GET /api/stops/{stopId}.
func (h *Handler) GetStop(w http.ResponseWriter, r *http.Request) {
	stopID, err := validate.StopID(chi.URLParam(r, "stopId"))
	if err != nil {
		h.writeUpstreamError(w, r, "get stop", err)
		return
	}

	stop, ok, err := h.catalog.StopByID(r.Context(), stopID)
	if err != nil {
		h.writeUpstreamError(w, r, "get stop", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Stop not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stop": stop})
}

// StopAlerts handles GET /api/stops/{stopId}/alerts.
func (h *Handler) StopAlerts(w http.ResponseWriter, r *http.Request) {
	stopID, err := validate.StopID(chi.URLParam(r, "stopId"))
	if err != nil {
		h.writeUpstreamError(w, r, "stop alerts", err)
		return
	}

	alerts := h.rt.ForStop(stopID, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"stopId": stopID,
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// ExportStops handles GET /api/stops/export.csv.
func (h *Handler) ExportStops(w http.ResponseWriter, r *http.Request) {
	all, err := h.catalog.Stops(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, "export stops", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="stops.csv"`)
	if err := export.WriteStops(w, all); err != nil {
		h.logger.Error("writing stops csv", "error", err)
	}
}

// CacheStats handles GET /api/stops/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Stats())
}

// ClearCache handles DELETE /api/stops/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.catalog.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Stop cache cleared",
		"stats":   h.catalog.Stats(),
	})
}

// stopName resolves a stop name from the catalog, or "" when unknown.
func (h *Handler) stopName(r *http.Request, stopID int) string {
	stop, ok, err := h.catalog.StopByID(r.Context(), stopID)
	if err != nil || !ok {
		return ""
	}
	return stop.StopName
}

var _ StopCatalog = (*stops.Cache)(nil)
