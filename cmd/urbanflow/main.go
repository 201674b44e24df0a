package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"urbanflow/internal/config"
	"urbanflow/internal/delays"
	"urbanflow/internal/stops"
	"urbanflow/internal/ztm"
)

var rootCmd = &cobra.Command{
	Use:               "urbanflow",
	Short:             "UrbanFlow transit companion backend",
	Long:              "Serves ZTM Gdańsk stops and live delays, and inspects the upstream feeds from the command line.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	envFiles   []string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides URBANFLOW_CONFIG)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, ".env files to load (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		os.Setenv("URBANFLOW_CONFIG", configPath)
	}

	var err error
	cfg, err = config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	return nil
}

func newClient() *ztm.Client {
	return ztm.NewClient(ztm.Options{
		StopsURL:          cfg.StopsURL,
		DeparturesURL:     cfg.DeparturesURL,
		UserAgent:         cfg.UserAgent,
		CatalogTimeout:    cfg.CatalogTimeout,
		DeparturesTimeout: cfg.DeparturesTimeout,
	}, logger)
}

func newCache(client *ztm.Client) *stops.Cache {
	return stops.NewCache(client, stops.Options{
		TTL:        cfg.CacheTTL,
		Location:   cfg.Location(),
		ServeStale: cfg.ServeStale,
	}, logger)
}

func newDelays(client *ztm.Client) *delays.Service {
	return delays.NewService(client, logger)
}
