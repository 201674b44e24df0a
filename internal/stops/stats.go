package stops

import (
	"time"

	"github.com/google/uuid"
)

// Stats is a point-in-time view of the cache.
type Stats struct {
	Keys      []string      `json:"keys"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Sets      uint64        `json:"sets"`
	Deletes   uint64        `json:"deletes"`
	Refreshes uint64        `json:"refreshes"`
	Coalesced uint64        `json:"coalesced"`
	Failures  uint64        `json:"failures"`
	Snapshot  *SnapshotInfo `json:"snapshot,omitempty"`
}

// SnapshotInfo describes the snapshot currently in the slot, fresh or stale.
type SnapshotInfo struct {
	ID         uuid.UUID `json:"id"`
	Date       string    `json:"date"`
	LastUpdate string    `json:"lastUpdate"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Stale      bool      `json:"stale"`
}

// Stats reports the cache counters. It never triggers a refresh.
// Keys lists CacheKey only while an unexpired snapshot is present.
func (c *Cache) Stats() Stats {
	st := Stats{
		Keys:      []string{},
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Refreshes: c.refreshes.Load(),
		Coalesced: c.coalesced.Load(),
		Failures:  c.failures.Load(),
	}

	snap := c.current()
	if snap == nil {
		return st
	}
	stale := snap.Expired(c.now())
	if !stale {
		st.Keys = append(st.Keys, snap.Key)
	}
	st.Snapshot = &SnapshotInfo{
		ID:         snap.ID,
		Date:       snap.Date,
		LastUpdate: snap.LastUpdate,
		Count:      len(snap.Stops),
		CreatedAt:  snap.CreatedAt,
		ExpiresAt:  snap.ExpiresAt,
		Stale:      stale,
	}
	return st
}
