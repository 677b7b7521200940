package telemetry

// Signal is an admission-pipeline outcome fed into abuse scoring.
type Signal string

const (
	SignalRateHit       = Signal("RATE_HIT")
	SignalLowConfidence = Signal("LOW_CONFIDENCE")
	SignalDedupe        = Signal("DEDUPE")
	SignalAccepted      = Signal("ACCEPTED")
)

// AbuseState tracks a decaying per-participant abuse score and its derived
// penalty windows.
type AbuseState struct {
	Score        float64
	ReducedUntil int64
	MutedUntil   int64
	Warn         bool
}

// NextAbuse applies one signal to the previous state. Score >= 4 warns,
// >= 8 opens a 30s reduced-capacity window, >= 12 opens a 10s mute and
// resets the score to 6 so a mute never becomes permanent.
func NextAbuse(nowMs int64, prev AbuseState, signal Signal) AbuseState {
	next := prev
	switch signal {
	case SignalRateHit:
		next.Score += 2
	case SignalLowConfidence, SignalDedupe:
		next.Score += 1
	case SignalAccepted:
		next.Score -= 0.25
		if next.Score < 0 {
			next.Score = 0
		}
	}
	next.Warn = next.Score >= 4
	if next.Score >= 8 {
		until := nowMs + 30_000
		if until > next.ReducedUntil {
			next.ReducedUntil = until
		}
	}
	if next.Score >= 12 {
		next.MutedUntil = nowMs + 10_000
		next.Score = 6
	}
	return next
}

// Reduced reports whether the reduced-capacity window is open.
func (a AbuseState) Reduced(nowMs int64) bool { return a.ReducedUntil > nowMs }

// Muted reports whether the full-mute window is open.
func (a AbuseState) Muted(nowMs int64) bool { return a.MutedUntil > nowMs }
