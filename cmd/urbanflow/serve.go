package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"urbanflow/internal/geocode"
	"urbanflow/internal/handler"
	"urbanflow/internal/realtime"
	"urbanflow/internal/server"
	"urbanflow/internal/stops"
	"urbanflow/internal/storage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP server port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Port = servePort
	}

	// Context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client := newClient()
	cache := newCache(client)
	if cfg.WarmCache {
		go stops.NewWarmer(cache, 0, logger).Run(ctx)
	}

	// Start GTFS-RT realtime alerts fetcher
	rtStore := realtime.NewStore()
	if cfg.AlertsURL != "" {
		go realtime.NewFetcher(cfg.AlertsURL, cfg.AlertsInterval, rtStore, logger).Start(ctx)
	} else {
		logger.Info("no alerts URL configured, service alerts disabled")
	}

	var geo handler.Geocoder
	if cfg.GeocoderURL != "" {
		geo = geocode.New(cfg.GeocoderURL, cfg.UserAgent, logger)
	}

	srv := server.New(cfg, cache, newDelays(client), rtStore, db, geo, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}
