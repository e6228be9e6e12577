package exporter

import (
	"sync"

	"github.com/patrickmn/go-cache"
)

// totalsEntry is the stored state of one counter series.
type totalsEntry struct {
	total     float64
	expiresAt int64 // flush timestamp (seconds) at which the entry is dropped
}

// TotalsAccumulator turns per-interval counter deltas into monotonically
// increasing totals.
//
// Entries expire on flush timestamps, not wall-clock time: an entry lives
// until a flush at or after (last update + TTL) prunes it. The go-cache
// store is therefore created without a default expiration or janitor.
//
// Thread-safety: All methods are safe for concurrent use.
type TotalsAccumulator struct {
	mu      sync.Mutex
	entries *cache.Cache
}

// NewTotalsAccumulator creates an empty accumulator.
func NewTotalsAccumulator() *TotalsAccumulator {
	return &TotalsAccumulator{
		entries: cache.New(cache.NoExpiration, 0),
	}
}

// Update adds delta to the total stored under key, refreshes its expiry to
// flushTs+ttlSeconds and returns the new total. Absent keys start at zero.
//
// Call it once per key per flush; a second call in the same flush counts the
// delta twice.
func (a *TotalsAccumulator) Update(key string, delta float64, flushTs, ttlSeconds int64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total float64
	if v, found := a.entries.Get(key); found {
		total = v.(totalsEntry).total
	}
	total += delta
	a.entries.Set(key, totalsEntry{total: total, expiresAt: flushTs + ttlSeconds}, cache.NoExpiration)
	return total
}

// Prune removes every entry whose expiry is at or before flushTs and returns
// the number of removed entries. It must run after the updates of a flush.
func (a *TotalsAccumulator) Prune(flushTs int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key, item := range a.entries.Items() {
		entry, ok := item.Object.(totalsEntry)
		if !ok || flushTs >= entry.expiresAt {
			a.entries.Delete(key)
			removed++
		}
	}
	return removed
}

// Total returns the current total for key.
func (a *TotalsAccumulator) Total(key string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, found := a.entries.Get(key)
	if !found {
		return 0, false
	}
	return v.(totalsEntry).total, true
}

// Len returns the number of live entries.
func (a *TotalsAccumulator) Len() int {
	return a.entries.ItemCount()
}
