package stops

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"urbanflow/internal/geo"
	"urbanflow/internal/ztm"
)

const (
	// MinQueryLength is the shortest query Search will answer.
	MinQueryLength = 2
	// SearchLimit caps the number of stops Search returns.
	SearchLimit = 50
)

// NearbyStop is a stop with its distance from a reference point.
type NearbyStop struct {
	Stop           ztm.Stop `json:"stop"`
	DistanceMeters float64  `json:"distanceMeters"`
}

// Search returns up to SearchLimit stops whose name, code or description
// contains query, case-insensitively, in catalog order. Queries shorter than
// MinQueryLength return an empty result without touching the catalog.
func (c *Cache) Search(ctx context.Context, query string) ([]ztm.Stop, error) {
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []ztm.Stop{}, nil
	}

	all, err := c.Stops(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := make([]ztm.Stop, 0)
	for _, s := range all {
		if matches(s, q) {
			out = append(out, s)
			if len(out) == SearchLimit {
				break
			}
		}
	}
	return out, nil
}

func matches(s ztm.Stop, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s.StopName), lowerQuery) ||
		strings.Contains(strings.ToLower(s.StopCode), lowerQuery) ||
		strings.Contains(strings.ToLower(s.StopDesc), lowerQuery)
}

// StopByID returns the cached stop with the given id.
func (c *Cache) StopByID(ctx context.Context, stopID int) (ztm.Stop, bool, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return ztm.Stop{}, false, err
	}
	if snap == nil {
		return ztm.Stop{}, false, nil
	}
	s, ok := snap.Lookup(stopID)
	return s, ok, nil
}

// Nearby returns stops within radiusMeters of (lat, lon), closest first.
// A limit of zero or less returns every match.
func (c *Cache) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyStop, error) {
	all, err := c.Stops(ctx)
	if err != nil {
		return nil, err
	}

	center := geo.Point{Lat: lat, Lon: lon}
	box := geo.Around(center, radiusMeters)
	out := make([]NearbyStop, 0)
	for _, s := range all {
		p := geo.Point{Lat: s.StopLat, Lon: s.StopLon}
		if !box.Contains(p) {
			continue
		}
		d := geo.Distance(center, p)
		if d <= radiusMeters {
			out = append(out, NearbyStop{Stop: s, DistanceMeters: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
