package delays

import (
	"context"
	"log/slog"
	"time"

	"urbanflow/internal/ztm"
)

// DeparturesFetcher fetches live departures for a stop.
type DeparturesFetcher interface {
	FetchDepartures(ctx context.Context, stopID int) ([]ztm.Departure, error)
}

// Service fetches departures and normalizes them. Results are never cached.
type Service struct {
	upstream DeparturesFetcher
	logger   *slog.Logger
}

// NewService creates a delay service.
func NewService(upstream DeparturesFetcher, logger *slog.Logger) *Service {
	return &Service{upstream: upstream, logger: logger}
}

// DelaysForStop returns the normalized departures for a stop, in upstream order.
// A stop without a live feed yields an empty, non-nil slice.
func (s *Service) DelaysForStop(ctx context.Context, stopID int) ([]FormattedDelay, error) {
	start := time.Now()
	deps, err := s.upstream.FetchDepartures(ctx, stopID)
	if err != nil {
		s.logger.Error("failed to fetch departures", "stop_id", stopID, "error", err)
		return nil, err
	}

	out := make([]FormattedDelay, 0, len(deps))
	for _, d := range deps {
		out = append(out, FormatDelay(d))
	}

	s.logger.Debug("departures fetched",
		"stop_id", stopID,
		"count", len(out),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}
