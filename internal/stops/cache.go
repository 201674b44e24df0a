// Package stops caches the ZTM stop catalog and answers lookups against it.
//
// The cache holds a single snapshot of the filtered catalog. A miss or an
// expired snapshot triggers a refresh; concurrent callers share one in-flight
// upstream fetch and all observe its result.
package stops

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"urbanflow/internal/ztm"
)

// CacheKey is the key the catalog snapshot is stored and reported under.
const CacheKey = "ztm_stops"

// DefaultTTL is how long a fetched catalog is served before it is refetched.
const DefaultTTL = 24 * time.Hour

// CatalogFetcher downloads the raw bulk stop catalog.
type CatalogFetcher interface {
	FetchStopCatalog(ctx context.Context) (ztm.StopCatalog, error)
}

// Options configures a Cache. Zero values fall back to the defaults.
type Options struct {
	TTL time.Duration

	// Location decides which date key counts as "today". Defaults to Europe/Warsaw.
	Location *time.Location

	// ServeStale returns an expired snapshot instead of the refresh error
	// when a refresh fails and an older snapshot is still in the slot.
	ServeStale bool

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is an immutable, filtered copy of the stop catalog.
type Snapshot struct {
	ID         uuid.UUID
	Key        string
	Date       string // date key the stops were taken from
	LastUpdate string // upstream lastUpdate for that date
	Stops      []ztm.Stop
	CreatedAt  time.Time
	ExpiresAt  time.Time

	byID map[int]int
}

func newSnapshot(date, lastUpdate string, stops []ztm.Stop, now time.Time, ttl time.Duration) *Snapshot {
	s := &Snapshot{
		ID:         uuid.New(),
		Key:        CacheKey,
		Date:       date,
		LastUpdate: lastUpdate,
		Stops:      stops,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		byID:       make(map[int]int, len(stops)),
	}
	for i, st := range stops {
		if _, dup := s.byID[st.StopID]; !dup {
			s.byID[st.StopID] = i
		}
	}
	return s
}

// Expired reports whether the snapshot is past its TTL at the given time.
func (s *Snapshot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Lookup returns the stop with the given id.
func (s *Snapshot) Lookup(stopID int) (ztm.Stop, bool) {
	i, ok := s.byID[stopID]
	if !ok {
		return ztm.Stop{}, false
	}
	return s.Stops[i], true
}

// Cache is the single-slot stop catalog cache. It is safe for concurrent use.
type Cache struct {
	upstream   CatalogFetcher
	ttl        time.Duration
	loc        *time.Location
	serveStale bool
	now        func() time.Time
	logger     *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot

	// inflight coalesces refreshes: at most one upstream fetch per key.
	inflight singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	sets      atomic.Uint64
	deletes   atomic.Uint64
	refreshes atomic.Uint64
	coalesced atomic.Uint64
	failures  atomic.Uint64
}

// NewCache creates an empty cache backed by upstream.
func NewCache(upstream CatalogFetcher, opts Options, logger *slog.Logger) *Cache {
	c := &Cache{
		upstream:   upstream,
		ttl:        opts.TTL,
		loc:        opts.Location,
		serveStale: opts.ServeStale,
		now:        opts.Now,
		logger:     logger,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.loc == nil {
		c.loc = warsawTZ()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Stops returns the cached, filtered catalog, refreshing it when missing or expired.
// When the upstream catalog has no usable date the result is empty and err is nil.
func (c *Cache) Stops(ctx context.Context) ([]ztm.Stop, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return []ztm.Stop{}, nil
	}
	return snap.Stops, nil
}

// Snapshot returns the current snapshot, refreshing it when missing or expired.
// A nil snapshot with a nil error means the upstream catalog was unusable.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.fresh(); snap != nil {
		c.hits.Add(1)
		return snap, nil
	}
	c.misses.Add(1)
	return c.refresh(ctx, false)
}

// Refresh fetches the catalog even if the current snapshot is still fresh.
// It joins a refresh that is already in flight rather than starting another.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx, true)
}

// Clear evicts the snapshot. A refresh already in flight may repopulate it.
func (c *Cache) Clear() {
	c.mu.Lock()
	had := c.snap != nil
	c.snap = nil
	c.mu.Unlock()

	if had {
		c.deletes.Add(1)
	}
	c.logger.Info("stop catalog cache cleared", "evicted", had)
}

func (c *Cache) fresh() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap != nil && !c.snap.Expired(c.now()) {
		return c.snap
	}
	return nil
}

func (c *Cache) current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// refresh waits for the single in-flight load, starting one if needed.
// The load is detached from the caller's cancellation; a caller whose context
// ends stops waiting but the load runs until it completes or times out.
func (c *Cache) refresh(ctx context.Context, force bool) (*Snapshot, error) {
	loadCtx := context.WithoutCancel(ctx)
	led := false
	ch := c.inflight.DoChan(CacheKey, func() (any, error) {
		led = true
		if !force {
			// A load that finished between our miss and joining the group already did the work.
			if snap := c.fresh(); snap != nil {
				return snap, nil
			}
		}
		return c.load(loadCtx)
	})

	select {
	case res := <-ch:
		// Shared is also set for the caller that ran the load.
		if res.Shared && !led {
			c.coalesced.Add(1)
		}
		if res.Err != nil {
			if stale := c.current(); c.serveStale && stale != nil {
				c.logger.Warn("serving stale stop catalog",
					"snapshot", stale.ID,
					"expired_at", stale.ExpiresAt.Format(time.RFC3339),
					"error", res.Err,
				)
				return stale, nil
			}
			return nil, res.Err
		}
		snap, _ := res.Val.(*Snapshot)
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load fetches, filters and stores a new snapshot. It only runs inside the
// singleflight group, so there is never more than one load at a time.
func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	c.refreshes.Add(1)
	start := time.Now()
	c.logger.Info("fetching stop catalog from ZTM")

	catalog, err := c.upstream.FetchStopCatalog(ctx)
	if err != nil {
		c.failures.Add(1)
		c.logger.Error("stop catalog refresh failed", "error", err)
		return nil, fmt.Errorf("refresh stop catalog: %w", err)
	}

	date, ok := selectDate(catalog, c.now().In(c.loc))
	if !ok {
		c.logger.Error("no valid date key in stop catalog", "dates", len(catalog))
		return nil, nil
	}

	day := catalog[date]
	filtered := FilterPassengerStops(day.Stops)
	snap := newSnapshot(date, day.LastUpdate, filtered, c.now(), c.ttl)

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	c.sets.Add(1)

	c.logger.Info("stop catalog cached",
		"date", date,
		"raw", len(day.Stops),
		"stops", len(filtered),
		"snapshot", snap.ID,
		"ttl", c.ttl,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return snap, nil
}

// selectDate picks today's key if the catalog has one, else the
// lexicographically first key.
func selectDate(catalog ztm.StopCatalog, now time.Time) (string, bool) {
	if len(catalog) == 0 {
		return "", false
	}
	today := now.Format("2006-01-02")
	if _, ok := catalog[today]; ok {
		return today, true
	}
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], true
}

// FilterPassengerStops drops virtual, non-passenger and nameless stops.
// The input is not modified.
func FilterPassengerStops(all []ztm.Stop) []ztm.Stop {
	out := make([]ztm.Stop, 0, len(all))
	for _, s := range all {
		if s.Virtual == 1 || s.NonPassenger == 1 || strings.TrimSpace(s.StopName) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func warsawTZ() *time.Location {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		// Fallback: fixed CET offset when tzdata is unavailable
		loc = time.FixedZone("CET", 1*60*60)
	}
	return loc
}
