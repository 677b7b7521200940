// Package stage computes the presentation layout mode for a room from
// aggregated signals, or from a manual director override.
package stage

import (
	"math"

	"roomcast/internal/segment"
)

// Mode is the presentation layout classification.
type Mode string

const (
	ModeLobby    = Mode("LOBBY")
	ModeActive   = Mode("ACTIVE")
	ModeFeature  = Mode("FEATURE")
	ModeClutch   = Mode("CLUTCH")
	ModeRecovery = Mode("RECOVERY")
)

// ValidMode reports whether m is a known layout mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeLobby, ModeActive, ModeFeature, ModeClutch, ModeRecovery:
		return true
	}
	return false
}

const (
	clutchMomentum   = 0.86
	clutchCloseness  = 0.88
	activeDensity    = 0.45
	activeSpeaker    = 0.6
	activeMomentum   = 0.5
	speakerFocused   = 0.72
	speakerUnfocused = 0.35
)

// Signals are the per-tick inputs to the director. All score-like fields
// are normalized to [0, 1].
type Signals struct {
	Segment          segment.Segment `json:"-"`
	MomentumScore    float64         `json:"momentumScore"`
	EventDensity     float64         `json:"eventDensity"`
	SpeakerIntensity float64         `json:"activeSpeakerIntensity"`
	ScreenShare      bool            `json:"screenShareActive"`
	Closeness        float64         `json:"closenessOfMatch"`
	Safemode         bool            `json:"-"`
	WsHealthy        bool            `json:"wsHealthy"`
	TileStalls       int             `json:"tileStallCount"`
	LockMode         Mode            `json:"-"`
	ForceFeature     bool            `json:"-"`
}

// Layout is the computed mode plus presentation hints and the reasons
// that selected it.
type Layout struct {
	Mode              Mode     `json:"mode"`
	TransitionMs      int      `json:"transitionMs"`
	FreezeTransitions bool     `json:"freezeTransitions"`
	ShowMomentum      bool     `json:"showMomentumBorder"`
	ShowCrowdMeter    bool     `json:"showCrowdMeter"`
	FeatureTile       bool     `json:"featureTile"`
	SpeakerWeight     float64  `json:"activeSpeakerWeight"`
	Reasons           []string `json:"reasons"`
}

// Compute is the pure director function, evaluated fresh each tick.
// Precedence: manual lock, health recovery, feature, clutch, active, lobby.
func Compute(sig Signals) Layout {
	if sig.LockMode != "" {
		return Layout{
			Mode:           sig.LockMode,
			TransitionMs:   400,
			ShowMomentum:   sig.LockMode == ModeActive || sig.LockMode == ModeClutch,
			ShowCrowdMeter: sig.LockMode != ModeRecovery,
			FeatureTile:    sig.LockMode == ModeFeature,
			SpeakerWeight:  0.5,
			Reasons:        []string{"director lock"},
		}
	}

	if sig.Safemode || !sig.WsHealthy || sig.TileStalls > 0 {
		reasons := make([]string, 0, 3)
		if sig.Safemode {
			reasons = append(reasons, "safemode")
		}
		if !sig.WsHealthy {
			reasons = append(reasons, "transport unhealthy")
		}
		if sig.TileStalls > 0 {
			reasons = append(reasons, "stalled tiles")
		}
		return Layout{
			Mode:              ModeRecovery,
			TransitionMs:      0,
			FreezeTransitions: true,
			SpeakerWeight:     0.2,
			Reasons:           reasons,
		}
	}

	if sig.ScreenShare || sig.ForceFeature {
		reason := "screen share"
		if sig.ForceFeature {
			reason = "feature override"
		}
		return Layout{
			Mode:           ModeFeature,
			TransitionMs:   400,
			ShowCrowdMeter: true,
			FeatureTile:    true,
			SpeakerWeight:  0.4,
			Reasons:        []string{reason},
		}
	}

	if (sig.Segment == segment.ClosingHighlights && sig.Closeness >= clutchCloseness) || sig.MomentumScore >= clutchMomentum {
		reason := "extreme momentum"
		if sig.Segment == segment.ClosingHighlights && sig.Closeness >= clutchCloseness {
			reason = "close finish"
		}
		return Layout{
			Mode:           ModeClutch,
			TransitionMs:   200,
			ShowMomentum:   true,
			ShowCrowdMeter: true,
			SpeakerWeight:  0.8,
			Reasons:        []string{reason},
		}
	}

	if sig.EventDensity >= activeDensity || sig.SpeakerIntensity >= activeSpeaker || sig.MomentumScore >= activeMomentum {
		reasons := make([]string, 0, 3)
		if sig.EventDensity >= activeDensity {
			reasons = append(reasons, "event density")
		}
		if sig.SpeakerIntensity >= activeSpeaker {
			reasons = append(reasons, "speaker activity")
		}
		if sig.MomentumScore >= activeMomentum {
			reasons = append(reasons, "momentum")
		}
		return Layout{
			Mode:           ModeActive,
			TransitionMs:   350,
			ShowMomentum:   true,
			ShowCrowdMeter: true,
			SpeakerWeight:  sig.SpeakerIntensity,
			Reasons:        reasons,
		}
	}

	return Layout{
		Mode:          ModeLobby,
		TransitionMs:  600,
		SpeakerWeight: sig.SpeakerIntensity,
		Reasons:       []string{"idle"},
	}
}

// Clamp01 bounds a signal to [0, 1], treating NaN and infinities as 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// EventDensity normalizes the count of accepted events in the trailing 15s.
func EventDensity(eventsLast15s int) float64 {
	return Clamp01(float64(eventsLast15s) / 18)
}

// MomentumScore normalizes a momentum delta into the director's scale.
func MomentumScore(lastDelta, displayA, displayB float64) float64 {
	return Clamp01(math.Max(math.Abs(lastDelta), math.Abs(displayA-displayB)/10))
}

// SpeakerIntensity maps audio focus onto the director's scale.
func SpeakerIntensity(focused bool) float64 {
	if focused {
		return speakerFocused
	}
	return speakerUnfocused
}

// Closeness maps a score gap onto [0, 1] where 1 is a tied match.
func Closeness(scoreA, scoreB int) float64 {
	return Clamp01(1 - math.Abs(float64(scoreA-scoreB))/8)
}
