package realtime

import (
	"slices"
	"sync"
	"time"
)

// Alert is a service alert parsed from the GTFS-RT feed.
type Alert struct {
	ID          string   `json:"id"`
	Header      string   `json:"header"`
	Description string   `json:"description"`
	URL         string   `json:"url,omitempty"`
	RouteIDs    []string `json:"routeIds"`
	StopIDs     []int    `json:"stopIds"`
	Effect      string   `json:"effect"` // "NO_SERVICE", "DETOUR", ...
	EffectLabel string   `json:"effectLabel"`
	Cause       string   `json:"cause"`
	Periods     []Period `json:"activePeriods,omitempty"`
}

// Period is an active window. A nil bound is open-ended.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ActiveAt reports whether the alert applies at t. Alerts without
// periods are always active.
func (a Alert) ActiveAt(t time.Time) bool {
	if len(a.Periods) == 0 {
		return true
	}
	for _, p := range a.Periods {
		if p.Start != nil && t.Before(*p.Start) {
			continue
		}
		if p.End != nil && !t.Before(*p.End) {
			continue
		}
		return true
	}
	return false
}

// Store holds the latest alert set. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	alerts    []Alert
	updatedAt time.Time
}

// NewStore creates an empty alert store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new alert set.
func (s *Store) Replace(alerts []Alert, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
	s.updatedAt = at
}

// UpdatedAt returns when the set was last replaced, zero if never.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// ForStop returns the alerts active at now that name the stop.
func (s *Store) ForStop(stopID int, now time.Time) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Alert{}
	for _, a := range s.alerts {
		if slices.Contains(a.StopIDs, stopID) && a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	return out
}

// ForRoute returns the alerts active at now that name the route.
func (s *Store) ForRoute(routeID string, now time.Time) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Alert{}
	for _, a := range s.alerts {
		if slices.Contains(a.RouteIDs, routeID) && a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	return out
}

// All returns a copy of every stored alert.
func (s *Store) All() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
