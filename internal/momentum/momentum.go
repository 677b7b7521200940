// Package momentum maintains decaying, windowed, per-team pressure derived
// from accepted telemetry, and detects momentum swings.
package momentum

import "math"

// Team identifies one of the two crews in a match.
type Team string

const (
	TeamA = Team("A")
	TeamB = Team("B")
)

const (
	windowMs        = 20_000
	decayPerRecalc  = 0.08
	decayFloor      = 0.35
	swingThreshold  = 6.0
	swingCooldownMs = 4_000
)

type point struct {
	ts    int64
	value float64
}

// Snapshot is the observable momentum state after a recomputation.
type Snapshot struct {
	RawA     float64 `json:"-"`
	RawB     float64 `json:"-"`
	DisplayA float64 `json:"displayA"`
	DisplayB float64 `json:"displayB"`
	Delta    float64 `json:"delta"`
}

// Tracker holds both team windows plus the shared decay factor and swing
// debounce state. Not safe for concurrent use; the owning room serializes
// access.
type Tracker struct {
	teamA       []point
	teamB       []point
	decayFactor float64
	lastDelta   float64
	lastSwingAt int64
	swingCount  int
	snap        Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{decayFactor: 1}
}

// Value computes the weighted contribution of one accepted event.
func Value(typeWeight float64, intensity int) float64 {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 5 {
		intensity = 5
	}
	return typeWeight * (0.5 + 0.1*float64(intensity))
}

// Append records one weighted point for a team.
func (t *Tracker) Append(team Team, ts int64, value float64) {
	if team == TeamA {
		t.teamA = append(t.teamA, point{ts, value})
	} else {
		t.teamB = append(t.teamB, point{ts, value})
	}
}

// Recalc drops points outside the trailing window, applies decay, and
// reports whether a momentum swing was declared. A swing requires the
// display delta to move by at least the threshold since the previous
// recomputation, debounced by a cooldown.
func (t *Tracker) Recalc(nowMs int64) (Snapshot, bool) {
	t.teamA = prune(t.teamA, nowMs)
	t.teamB = prune(t.teamB, nowMs)
	rawA := sum(t.teamA)
	rawB := sum(t.teamB)

	t.decayFactor *= 1 - decayPerRecalc
	if t.decayFactor < decayFloor {
		t.decayFactor = decayFloor
	}
	if t.decayFactor > 1 {
		t.decayFactor = 1
	}

	displayA := round2(rawA * t.decayFactor)
	displayB := round2(rawB * t.decayFactor)
	delta := displayA - displayB

	// The cooldown only applies once a swing has actually been declared;
	// lastSwingAt of zero means never.
	swing := math.Abs(delta-t.lastDelta) >= swingThreshold &&
		(t.lastSwingAt == 0 || nowMs-t.lastSwingAt >= swingCooldownMs)
	if swing {
		t.lastSwingAt = nowMs
		t.swingCount++
	}
	t.lastDelta = delta
	t.snap = Snapshot{RawA: rawA, RawB: rawB, DisplayA: displayA, DisplayB: displayB, Delta: delta}
	return t.snap, swing
}

// Snapshot returns the state from the most recent recomputation.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// LastSwingAt returns when the last swing was declared, 0 if never.
func (t *Tracker) LastSwingAt() int64 { return t.lastSwingAt }

// SwingCount returns how many swings this match has produced.
func (t *Tracker) SwingCount() int { return t.swingCount }

// DecayFactor exposes the clamped decay multiplier.
func (t *Tracker) DecayFactor() float64 { return t.decayFactor }

// PointCount reports surviving points for both teams combined.
func (t *Tracker) PointCount() int { return len(t.teamA) + len(t.teamB) }

// Reset clears all windows and counters for a new match.
func (t *Tracker) Reset() {
	*t = Tracker{decayFactor: 1}
}

func prune(points []point, nowMs int64) []point {
	kept := points[:0]
	for _, p := range points {
		if nowMs-p.ts <= windowMs {
			kept = append(kept, p)
		}
	}
	return kept
}

func sum(points []point) float64 {
	var s float64
	for _, p := range points {
		s += p.value
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
