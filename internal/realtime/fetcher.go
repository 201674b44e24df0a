// Package realtime polls the GTFS-RT service alerts feed.
package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

const maxFeedSize = 16 << 20

// Fetcher polls a GTFS-RT alerts feed and updates the store.
type Fetcher struct {
	alertsURL string
	interval  time.Duration
	store     *Store
	client    *http.Client
	logger    *slog.Logger
}

// NewFetcher creates a GTFS-RT alerts fetcher.
func NewFetcher(alertsURL string, interval time.Duration, store *Store, logger *slog.Logger) *Fetcher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Fetcher{
		alertsURL: alertsURL,
		interval:  interval,
		store:     store,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// Start polls the feed until ctx is cancelled. Failed polls keep the previous alerts.
func (f *Fetcher) Start(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn("fetch alerts failed", "error", err)
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				f.logger.Warn("fetch alerts failed", "error", err)
			}
		case <-ctx.Done():
			f.logger.Info("GTFS-RT alerts fetcher stopped")
			return
		}
	}
}

// Refresh fetches the feed once and replaces the stored alerts.
func (f *Fetcher) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.alertsURL, nil)
	if err != nil {
		return fmt.Errorf("create alerts request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch alerts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alerts feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return fmt.Errorf("read alerts body: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return fmt.Errorf("parse alerts protobuf: %w", err)
	}

	alerts := ParseAlerts(feed)
	f.store.Replace(alerts, time.Now())
	f.logger.Info("GTFS-RT alerts updated", "count", len(alerts))
	return nil
}

// ParseAlerts extracts alerts from a feed. Route and stop ids are deduplicated;
// stop ids that are not integers are skipped.
func ParseAlerts(feed *gtfs.FeedMessage) []Alert {
	var alerts []Alert
	for _, entity := range feed.GetEntity() {
		a := entity.GetAlert()
		if a == nil || entity.GetIsDeleted() {
			continue
		}

		alert := Alert{
			ID:          entity.GetId(),
			Header:      translation(a.GetHeaderText()),
			Description: translation(a.GetDescriptionText()),
			URL:         translation(a.GetUrl()),
			RouteIDs:    []string{},
			StopIDs:     []int{},
			Effect:      a.GetEffect().String(),
			Cause:       a.GetCause().String(),
		}
		alert.EffectLabel = EffectLabel(alert.Effect)

		routeSet := make(map[string]bool)
		stopSet := make(map[int]bool)
		for _, ie := range a.GetInformedEntity() {
			if rid := ie.GetRouteId(); rid != "" && !routeSet[rid] {
				alert.RouteIDs = append(alert.RouteIDs, rid)
				routeSet[rid] = true
			}
			sid, err := strconv.Atoi(ie.GetStopId())
			if err == nil && !stopSet[sid] {
				alert.StopIDs = append(alert.StopIDs, sid)
				stopSet[sid] = true
			}
		}

		for _, tr := range a.GetActivePeriod() {
			var p Period
			if s := tr.GetStart(); s > 0 {
				t := time.Unix(int64(s), 0).UTC()
				p.Start = &t
			}
			if e := tr.GetEnd(); e > 0 {
				t := time.Unix(int64(e), 0).UTC()
				p.End = &t
			}
			alert.Periods = append(alert.Periods, p)
		}

		alerts = append(alerts, alert)
	}
	return alerts
}

// translation prefers Polish text, then the first non-empty translation.
func translation(ts *gtfs.TranslatedString) string {
	if ts == nil {
		return ""
	}
	first := ""
	for _, t := range ts.GetTranslation() {
		text := t.GetText()
		if text == "" {
			continue
		}
		if t.GetLanguage() == "pl" {
			return text
		}
		if first == "" {
			first = text
		}
	}
	return first
}

// EffectLabel returns the passenger-facing label for a GTFS-RT effect.
func EffectLabel(effect string) string {
	switch effect {
	case "NO_SERVICE":
		return "Brak kursów"
	case "REDUCED_SERVICE":
		return "Ograniczona obsługa"
	case "SIGNIFICANT_DELAYS":
		return "Znaczne opóźnienia"
	case "DETOUR":
		return "Objazd"
	case "ADDITIONAL_SERVICE":
		return "Dodatkowe kursy"
	case "MODIFIED_SERVICE":
		return "Zmiana kursowania"
	case "STOP_MOVED":
		return "Przeniesiony przystanek"
	default:
		return "Komunikat"
	}
}
