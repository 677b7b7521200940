package telemetry

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

const (
	dedupeWindowMs = 100
	dedupeTTLMs    = 5_000
	dedupeMax      = 2048
)

// DedupeKey hashes the event content plus a coarse time bucket, so an
// identical submission within the same 100ms bucket maps to the same key.
func DedupeKey(participantID string, t EventType, intensity int, statDelta map[string]float64, tsMs int64) uint64 {
	keys := make([]string, 0, len(statDelta))
	for k := range statDelta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%d|", participantID, t, intensity)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%g,", k, statDelta[k])
	}
	fmt.Fprintf(h, "|%d", tsMs/dedupeWindowMs)
	return h.Sum64()
}

// dedupeCache is a per-room bounded map of recently seen content keys.
type dedupeCache struct {
	seen map[uint64]int64
}

func newDedupeCache() *dedupeCache {
	return &dedupeCache{seen: make(map[uint64]int64)}
}

// check prunes entries older than the TTL, then reports whether key was
// already present; new keys are recorded. Over cap, the oldest quartile is
// evicted.
func (c *dedupeCache) check(key uint64, tsMs int64) bool {
	cutoff := tsMs - dedupeTTLMs
	for k, seenAt := range c.seen {
		if seenAt < cutoff {
			delete(c.seen, k)
		}
	}
	if _, dup := c.seen[key]; dup {
		return true
	}
	c.seen[key] = tsMs
	if len(c.seen) > dedupeMax {
		c.evictOldestQuartile()
	}
	return false
}

func (c *dedupeCache) evictOldestQuartile() {
	type entry struct {
		key uint64
		ts  int64
	}
	entries := make([]entry, 0, len(c.seen))
	for k, ts := range c.seen {
		entries = append(entries, entry{k, ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })
	drop := dedupeMax / 4
	if drop < 1 {
		drop = 1
	}
	for i := 0; i < drop && i < len(entries); i++ {
		delete(c.seen, entries[i].key)
	}
}

func (c *dedupeCache) size() int { return len(c.seen) }
