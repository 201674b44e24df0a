// Package server wires the HTTP routes and middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"urbanflow/internal/config"
	"urbanflow/internal/handler"
	"urbanflow/internal/realtime"
	"urbanflow/internal/storage"
)

// Server is the HTTP server for UrbanFlow.
type Server struct {
	router chi.Router
	cfg    *config.Config
	logger *slog.Logger
	srv    *http.Server
}

// New creates a new Server with all routes registered.
func New(cfg *config.Config, catalog handler.StopCatalog, ds handler.DelaySource, rt *realtime.Store, db storage.Store, geo handler.Geocoder, logger *slog.Logger) *Server {
	h := handler.New(catalog, ds, rt, db, geo, cfg, logger)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(securityHeaders)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/healthz", h.Healthz)
	r.Get("/debug/cache", h.CacheDebug)

	r.Route("/api", func(r chi.Router) {
		// Stops
		r.Get("/stops", h.ListStops)
		r.Get("/stops/search", h.SearchStops)
		r.Get("/stops/nearby", h.NearbyStops)
		r.Get("/stops/export.csv", h.ExportStops)
		r.Get("/stops/cache/stats", h.CacheStats)
		r.With(requireAdmin(cfg.AdminToken)).Delete("/stops/cache", h.ClearCache)
		r.Get("/stops/{stopId}", h.GetStop)
		r.Get("/stops/{stopId}/alerts", h.StopAlerts)

		// Delays
		r.Get("/delays/{stopId}", h.GetDelays)
		r.Get("/delays/{stopId}/export.csv", h.ExportDelays)
		r.Get("/delays/{stopId}/stream", h.StreamDelays)

		// Auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(h.TokenSecret()))
			r.Get("/auth/me", h.Me)
			r.Get("/user-stops", h.ListUserStops)
			r.Post("/user-stops", h.AddUserStop)
			r.Put("/user-stops/{id}", h.RenameUserStop)
			r.Delete("/user-stops/{id}", h.DeleteUserStop)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Route not found")
	})

	return &Server{
		router: r,
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
