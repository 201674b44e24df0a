// Package handler implements the JSON HTTP API.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"urbanflow/internal/config"
	"urbanflow/internal/delays"
	"urbanflow/internal/geocode"
	"urbanflow/internal/realtime"
	"urbanflow/internal/stops"
	"urbanflow/internal/storage"
	"urbanflow/internal/validate"
	"urbanflow/internal/ztm"
)

// StopCatalog is the stop data the handlers read. *stops.Cache implements it.
type StopCatalog interface {
	Stops(ctx context.Context) ([]ztm.Stop, error)
	Snapshot(ctx context.Context) (*stops.Snapshot, error)
	Search(ctx context.Context, query string) ([]ztm.Stop, error)
	StopByID(ctx context.Context, stopID int) (ztm.Stop, bool, error)
	Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]stops.NearbyStop, error)
	Stats() stops.Stats
	Clear()
}

// DelaySource returns normalized delays for a stop. *delays.Service implements it.
type DelaySource interface {
	DelaysForStop(ctx context.Context, stopID int) ([]delays.FormattedDelay, error)
}

// Geocoder resolves an address to coordinates. *geocode.Client implements it.
type Geocoder interface {
	Search(ctx context.Context, query string) (geocode.Result, error)
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	catalog     StopCatalog
	delays      DelaySource
	rt          *realtime.Store
	db          storage.Store
	geo         Geocoder // nil disables address search
	cfg         *config.Config
	logger      *slog.Logger
	tokenSecret []byte // HMAC key for signing bearer tokens
	started     time.Time
}

// New creates a Handler.
func New(catalog StopCatalog, ds DelaySource, rt *realtime.Store, db storage.Store, geo Geocoder, cfg *config.Config, logger *slog.Logger) *Handler {
	// Derive token secret from config or generate a random one
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("failed to generate token secret", "error", err)
			os.Exit(1)
		}
		logger.Warn("no URBANFLOW_TOKEN_SECRET set, generated random secret (tokens won't survive restart)")
	}

	return &Handler{
		catalog:     catalog,
		delays:      ds,
		rt:          rt,
		db:          db,
		geo:         geo,
		cfg:         cfg,
		logger:      logger,
		tokenSecret: secret,
		started:     time.Now(),
	}
}

// TokenSecret returns the HMAC key used for bearer tokens.
func (h *Handler) TokenSecret() []byte {
	return h.tokenSecret
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeUpstreamError maps core errors to a status and a generic message.
// Upstream bodies and error text are logged, never sent to the client.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		h.logger.Debug("request cancelled", "op", op, "path", r.URL.Path)
	case errors.Is(err, ztm.ErrTimeout):
		h.logger.Warn("upstream timeout", "op", op, "error", err)
		writeError(w, http.StatusGatewayTimeout, "ZTM API request timeout")
	case errors.Is(err, ztm.ErrUnavailable), errors.Is(err, ztm.ErrMalformed):
		h.logger.Error("upstream failure", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "ZTM API is currently unavailable")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or 0 if the request is anonymous.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}
