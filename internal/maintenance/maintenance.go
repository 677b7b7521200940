// Package maintenance holds the process-wide operational state machine and
// the tick-performance protection monitor.
package maintenance

import (
	"fmt"
	"sort"
	"sync"
)

// State is the operator-facing availability state.
type State string

const (
	StateActive      = State("ACTIVE")
	StateDraining    = State("DRAINING")
	StateMaintenance = State("MAINTENANCE")
)

// MaxDrainMs is how long DRAINING may last before auto-promotion.
const MaxDrainMs = 15 * 60_000

// ValidState reports whether s is a known maintenance state.
func ValidState(s State) bool {
	return s == StateActive || s == StateDraining || s == StateMaintenance
}

// Window is the process-wide maintenance window. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	state    State
	message  string
	startsAt int64
	endsAt   int64
}

func NewWindow() *Window {
	return &Window{state: StateActive, message: "Maintenance mode"}
}

// Set applies an operator transition. ACTIVE cannot jump straight to
// MAINTENANCE; DRAINING is the required intermediate step.
func (w *Window) Set(nowMs int64, next State, message string) error {
	if !ValidState(next) {
		return fmt.Errorf("unknown maintenance state %q", next)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateActive && next == StateMaintenance {
		return fmt.Errorf("set %s before %s", StateDraining, StateMaintenance)
	}
	w.state = next
	if message != "" {
		w.message = message
	}
	w.startsAt = nowMs
	if next == StateDraining {
		w.endsAt = nowMs + MaxDrainMs
	} else {
		w.endsAt = 0
	}
	return nil
}

// Tick auto-promotes an expired drain window to MAINTENANCE and reports
// whether a promotion happened.
func (w *Window) Tick(nowMs int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateDraining && w.endsAt > 0 && nowMs >= w.endsAt {
		w.state = StateMaintenance
		w.endsAt = 0
		return true
	}
	return false
}

// State returns the current maintenance state.
func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Status returns the state plus banner fields for broadcast payloads.
func (w *Window) Status(nowMs int64) (State, string, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var etaSeconds int64
	if w.state == StateDraining && w.endsAt > nowMs {
		etaSeconds = (w.endsAt - nowMs) / 1000
	}
	return w.state, w.message, etaSeconds
}

// BlocksJoins reports whether new-session admission is refused. During
// DRAINING only joins are blocked; in-progress actions continue.
func (w *Window) BlocksJoins() bool {
	return w.State() != StateActive
}

// BlocksMutations reports whether all mutating entry points are refused.
func (w *Window) BlocksMutations() bool {
	return w.State() == StateMaintenance
}

// ProtectionMode is the derived per-tick degradation flag.
type ProtectionMode string

const (
	ProtectionNormal   = ProtectionMode("NORMAL")
	ProtectionDegraded = ProtectionMode("DEGRADED")
)

const protectionWindow = 300

// ProtectionMonitor keeps a rolling window of tick durations and derives
// the protection mode from their p95 and the cumulative overrun count.
// Safe for concurrent use.
type ProtectionMonitor struct {
	mu          sync.Mutex
	tickMs      []float64
	overruns    int
	p95WarnMs   float64
	overrunWarn int
	mode        ProtectionMode
}

func NewProtectionMonitor(p95WarnMs float64, overrunWarn int) *ProtectionMonitor {
	return &ProtectionMonitor{
		p95WarnMs:   p95WarnMs,
		overrunWarn: overrunWarn,
		mode:        ProtectionNormal,
	}
}

// ObserveTick records one tick duration and recomputes the mode.
func (p *ProtectionMonitor) ObserveTick(durMs float64) ProtectionMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickMs = append(p.tickMs, durMs)
	if len(p.tickMs) > protectionWindow {
		p.tickMs = p.tickMs[len(p.tickMs)-protectionWindow:]
	}
	p.recompute()
	return p.mode
}

// ObserveOverrun counts one skipped tick and recomputes the mode.
func (p *ProtectionMonitor) ObserveOverrun() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overruns++
	p.recompute()
}

func (p *ProtectionMonitor) recompute() {
	if p.p95() > p.p95WarnMs || p.overruns > p.overrunWarn {
		p.mode = ProtectionDegraded
	} else {
		p.mode = ProtectionNormal
	}
}

func (p *ProtectionMonitor) p95() float64 {
	if len(p.tickMs) == 0 {
		return 0
	}
	sorted := make([]float64, len(p.tickMs))
	copy(sorted, p.tickMs)
	sort.Float64s(sorted)
	return sorted[int(float64(len(sorted))*0.95)]
}

// Mode returns the current protection mode.
func (p *ProtectionMonitor) Mode() ProtectionMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Stats returns tick duration average, p95, and the overrun count.
func (p *ProtectionMonitor) Stats() (avgMs, p95Ms float64, overruns int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tickMs) > 0 {
		var sum float64
		for _, v := range p.tickMs {
			sum += v
		}
		avgMs = sum / float64(len(p.tickMs))
	}
	return avgMs, p.p95(), p.overruns
}

// IntervalMultiplier scales broadcast cadence for the current mode.
// Operator safe mode wins over protection degradation.
func IntervalMultiplier(mode ProtectionMode, safemode bool) int {
	if safemode {
		return 3
	}
	if mode == ProtectionDegraded {
		return 2
	}
	return 1
}
