// Package segment advances the broadcast narrative phase of a match.
package segment

// Segment is the current narrative phase.
type Segment string

const (
	TipOff            = Segment("TIP_OFF")
	MomentumSwing     = Segment("MOMENTUM_SWING")
	HalftimeRecap     = Segment("HALFTIME_RECAP")
	ClosingHighlights = Segment("CLOSING_HIGHLIGHTS")
)

const (
	openingDwellMs = 10_000
	minDwellMs     = 8_000
	swingRecentMs  = 2_000
	minHalftimeMs  = 60_000
)

// State is the full per-room segment machine. Halftime and closing fire at
// most once per match, tracked by flags rather than segment identity since
// swings may re-enter MOMENTUM_SWING afterward.
type State struct {
	Current       Segment `json:"active"`
	StartedAt     int64   `json:"startedAt"`
	HalftimeFired bool    `json:"-"`
	ClosingFired  bool    `json:"-"`
}

// NewState starts a match at tip-off.
func NewState(nowMs int64) State {
	return State{Current: TipOff, StartedAt: nowMs}
}

// Signals are the inputs to one transition evaluation.
type Signals struct {
	NowMs       int64
	ElapsedMs   int64
	TotalMs     int64
	ScoreGap    int
	LastSwingAt int64
}

// Next is the pure transition function. It returns the new state, whether
// a transition happened, and the reason for it.
func Next(s State, sig Signals) (State, bool, string) {
	dwell := sig.NowMs - s.StartedAt
	var progress float64
	if sig.TotalMs > 0 {
		progress = float64(sig.ElapsedMs) / float64(sig.TotalMs)
	}

	switch {
	case s.Current == TipOff && dwell >= openingDwellMs:
		return transition(s, MomentumSwing, sig.NowMs), true, "tip-off dwell elapsed"

	case !s.HalftimeFired && dwell >= minDwellMs && sig.ElapsedMs >= minHalftimeMs && progress >= 0.5:
		next := transition(s, HalftimeRecap, sig.NowMs)
		next.HalftimeFired = true
		return next, true, "halftime threshold reached"

	case !s.ClosingFired && dwell >= minDwellMs && (progress >= 0.85 || (progress >= 0.75 && sig.ScoreGap <= 1)):
		next := transition(s, ClosingHighlights, sig.NowMs)
		next.ClosingFired = true
		return next, true, "closing threshold reached"

	case s.Current != MomentumSwing && s.Current != ClosingHighlights &&
		dwell >= minDwellMs && sig.LastSwingAt > 0 && sig.NowMs-sig.LastSwingAt <= swingRecentMs:
		return transition(s, MomentumSwing, sig.NowMs), true, "fresh momentum swing"
	}

	return s, false, ""
}

func transition(s State, to Segment, nowMs int64) State {
	s.Current = to
	s.StartedAt = nowMs
	return s
}

// Theme is the presentation bundle broadcast alongside the segment.
type Theme struct {
	OverlayMode        string  `json:"overlayMode"`
	IntroAnimation     bool    `json:"introAnimation"`
	CrewColorSplash    bool    `json:"crewColorSplash"`
	ShowMVPPanel       bool    `json:"showMVPPanel"`
	TensionPulse       bool    `json:"tensionPulse"`
	CrowdMeterEmphasis float64 `json:"crowdMeterEmphasis"`
}

// ThemeFor maps a segment to its broadcast theme.
func ThemeFor(s Segment) Theme {
	switch s {
	case TipOff:
		return Theme{OverlayMode: "intro", IntroAnimation: true, CrewColorSplash: true, CrowdMeterEmphasis: 1}
	case HalftimeRecap:
		return Theme{OverlayMode: "comparison", ShowMVPPanel: true, CrowdMeterEmphasis: 1}
	case ClosingHighlights:
		return Theme{OverlayMode: "tension", TensionPulse: true, CrowdMeterEmphasis: 1.3}
	default:
		return Theme{OverlayMode: "live", CrowdMeterEmphasis: 1}
	}
}
