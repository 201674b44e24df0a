package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"urbanflow/internal/storage"
	"urbanflow/internal/validate"
)

type userStopRequest struct {
	StopID   json.Number `json:"stopId"`
	StopName string      `json:"stopName"`
}

// ListUserStops handles GET /api/user-stops.
func (h *Handler) ListUserStops(w http.ResponseWriter, r *http.Request) {
	list, err := h.db.ListUserStops(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.Error("list user stops", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load saved stops")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(list),
		"stops": list,
	})
}

// AddUserStop handles POST /api/user-stops.
// A missing stopName falls back to the name in the stop catalog.
func (h *Handler) AddUserStop(w http.ResponseWriter, r *http.Request) {
	var req userStopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stopID, err := validate.StopID(req.StopID.String())
	if err != nil {
		h.writeUpstreamError(w, r, "add user stop", err)
		return
	}
	if strings.TrimSpace(req.StopName) == "" {
		req.StopName = h.stopName(r, stopID)
	}
	name, err := validate.StopName(req.StopName)
	if err != nil {
		h.writeUpstreamError(w, r, "add user stop", err)
		return
	}

	us, err := h.db.AddUserStop(r.Context(), UserID(r.Context()), stopID, name)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, "This stop is already in your list")
		return
	}
	if err != nil {
		h.logger.Error("add user stop", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save stop")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Stop added successfully",
		"stop":    us,
	})
}

// RenameUserStop handles PUT /api/user-stops/{id}.
func (h *Handler) RenameUserStop(w http.ResponseWriter, r *http.Request) {
	id, ok := userStopID(w, r)
	if !ok {
		return
	}

	var req userStopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	name, err := validate.StopName(req.StopName)
	if err != nil {
		h.writeUpstreamError(w, r, "rename user stop", err)
		return
	}

	us, err := h.db.RenameUserStop(r.Context(), UserID(r.Context()), id, name)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Saved stop not found")
		return
	}
	if err != nil {
		h.logger.Error("rename user stop", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update stop")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Stop updated successfully",
		"stop":    us,
	})
}

// DeleteUserStop handles DELETE /api/user-stops/{id}.
func (h *Handler) DeleteUserStop(w http.ResponseWriter, r *http.Request) {
	id, ok := userStopID(w, r)
	if !ok {
		return
	}

	err := h.db.DeleteUserStop(r.Context(), UserID(r.Context()), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Saved stop not found")
		return
	}
	if err != nil {
		h.logger.Error("delete user stop", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete stop")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Stop removed successfully"})
}

func userStopID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid saved stop id")
		return 0, false
	}
	return id, true
}
