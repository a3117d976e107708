package certify

import (
	"tradecore/internal/domain"
)

// trackerWindow bounds how far back zone entries count as "rapid" re-tests.
const trackerWindow = 20

// RetestTracker watches closes crossing zone boundaries and measures the
// corroboration inputs for the theta=2 elevation: how many times price
// re-entered a zone recently (impulse count) and how many bars the latest
// re-entry took (recovery time).
//
// Single-writer, like the ledger: only the per-bar pipeline feeds it.
type RetestTracker struct {
	doctrine domain.Doctrine
	// entries holds the bar indexes at which the close crossed into each
	// zone, oldest first, pruned to the tracker window.
	entries  map[string][]int64
	lastZone string
}

// NewRetestTracker creates an empty tracker.
func NewRetestTracker(d domain.Doctrine) *RetestTracker {
	return &RetestTracker{
		doctrine: d,
		entries:  make(map[string][]int64),
	}
}

// Observe admits one bar. An "entry" is counted when the close's zone
// differs from the previous close's zone.
func (t *RetestTracker) Observe(bar domain.Bar) {
	zone := domain.ZoneID(bar.Close, t.doctrine.ZoneBand)
	if zone == t.lastZone {
		return
	}
	t.lastZone = zone

	list := append(t.entries[zone], bar.Index)
	// Prune entries older than the window.
	cutoff := bar.Index - trackerWindow
	for len(list) > 0 && list[0] < cutoff {
		list = list[1:]
	}
	t.entries[zone] = list
}

// Corroboration reports the retest evidence for a zone as of now.
// RecoveryBars is the gap between the two most recent entries; a zone
// touched at most once has nothing to recover from and reports the
// tracker window (slowest possible).
func (t *RetestTracker) Corroboration(zoneID string) Corroboration {
	list := t.entries[zoneID]
	c := Corroboration{
		ImpulseCount: len(list),
		RecoveryBars: trackerWindow,
	}
	if len(list) >= 2 {
		c.RecoveryBars = float64(list[len(list)-1] - list[len(list)-2])
	}
	return c
}

// Reset clears all retest state (session boundary, with the ledger).
func (t *RetestTracker) Reset() {
	t.entries = make(map[string][]int64)
	t.lastZone = ""
}
