// Package announcer converts qualifying telemetry into rate-limited,
// anti-repetitive callout events.
package announcer

import (
	"math/rand"
	"strings"

	"roomcast/internal/segment"
	"roomcast/internal/telemetry"
)

// Tier is the loudness class of a callout.
type Tier string

const (
	TierLow       = Tier("LOW")
	TierMid       = Tier("MID")
	TierHigh      = Tier("HIGH")
	TierLegendary = Tier("LEGENDARY")
)

const (
	templateCooldownMs    = 30_000
	participantCooldownMs = 6_000
	memorySize            = 3
)

// TierForIntensity maps event intensity to a callout tier.
func TierForIntensity(intensity int) Tier {
	switch {
	case intensity >= 5:
		return TierLegendary
	case intensity >= 4:
		return TierHigh
	case intensity >= 2:
		return TierMid
	default:
		return TierLow
	}
}

// PatternTag classifies an event type for repetition checks.
func PatternTag(t telemetry.EventType) string {
	switch t {
	case telemetry.EventObjective, telemetry.EventGoal:
		return "objective_steal"
	case telemetry.EventKill, telemetry.EventHeadshot:
		return "clutch_finish"
	case telemetry.EventAssist:
		return "combo_chain"
	default:
		return "momentum_swing"
	}
}

// TierAllowed applies the segment and quiet-mode gates. Halftime drops MID,
// closing keeps only the top tiers, tip-off never goes legendary, and quiet
// mode allows only LOW.
func TierAllowed(seg segment.Segment, tier Tier, quiet bool) bool {
	switch seg {
	case segment.HalftimeRecap:
		return tier != TierMid
	case segment.ClosingHighlights:
		return tier == TierHigh || tier == TierLegendary
	case segment.TipOff:
		return tier != TierLegendary
	}
	if quiet {
		return tier == TierLow
	}
	return tier != TierLow
}

func globalCooldownMs(intensity int) int64 {
	switch {
	case intensity >= 5:
		return 20_000
	case intensity >= 4:
		return 6_000
	default:
		return 2_500
	}
}

// Callout is an emitted announcer event.
type Callout struct {
	Tier       Tier   `json:"tier"`
	TemplateID string `json:"templateId"`
	PatternTag string `json:"patternTag"`
	Text       string `json:"text"`
	DurationMs int64  `json:"durationMs"`
	StyleID    string `json:"styleId"`
	SfxID      string `json:"sfxId,omitempty"`
}

type emitted struct {
	ts         int64
	tier       Tier
	patternTag string
}

// Memory holds the anti-repetition and cooldown state for one room.
type Memory struct {
	recent        []emitted
	templateUntil map[string]int64
	globalAt      int64
	participantAt map[string]int64
	lastTier      Tier
}

func NewMemory() *Memory {
	return &Memory{
		templateUntil: map[string]int64{},
		participantAt: map[string]int64{},
		lastTier:      TierLow,
	}
}

// LastTier is the tier of the most recent emitted callout.
func (m *Memory) LastTier() Tier { return m.lastTier }

// Offer evaluates one accepted event against every gate and, when it
// passes, commits the cooldowns and memory and returns the callout.
func (m *Memory) Offer(nowMs int64, seg segment.Segment, quiet bool, participantID string, eventType telemetry.EventType, intensity int, vibe Vibe, familyMode bool) (Callout, bool) {
	tier := TierForIntensity(intensity)
	if !TierAllowed(seg, tier, quiet) {
		return Callout{}, false
	}

	tag := PatternTag(eventType)
	for _, e := range m.recent {
		if e.patternTag == tag {
			return Callout{}, false
		}
	}
	if n := len(m.recent); n > 0 && m.recent[n-1].tier == tier && tier != TierLegendary {
		return Callout{}, false
	}

	templateID := strings.ToLower(string(eventType)) + "_" + strings.ToLower(string(tier))
	if m.templateUntil[templateID] > nowMs {
		return Callout{}, false
	}
	if nowMs-m.globalAt < globalCooldownMs(intensity) {
		return Callout{}, false
	}
	if nowMs-m.participantAt[participantID] < participantCooldownMs {
		return Callout{}, false
	}

	m.globalAt = nowMs
	m.participantAt[participantID] = nowMs
	m.templateUntil[templateID] = nowMs + templateCooldownMs
	m.recent = append(m.recent, emitted{ts: nowMs, tier: tier, patternTag: tag})
	if len(m.recent) > memorySize {
		m.recent = m.recent[len(m.recent)-memorySize:]
	}
	m.lastTier = tier

	c := renderCallout(participantID, tier, vibe, familyMode)
	c.TemplateID = templateID
	c.PatternTag = tag
	return c, true
}

// Vibe selects the callout phrase pack.
type Vibe string

const (
	VibeStreet = Vibe("STREET")
	VibeArena  = Vibe("ARENA")
	VibeNeon   = Vibe("NEON")
	VibeChill  = Vibe("CHILL")
)

// ValidVibe reports whether v names a known phrase pack.
func ValidVibe(v Vibe) bool {
	_, ok := vibePacks[v]
	return ok
}

var familyPack = map[Tier][]string{
	TierLow:       {"NICE PLAY!", "SOLID MOVE!"},
	TierMid:       {"BIG MOMENT!", "THAT WAS CLEAN!"},
	TierHigh:      {"CLUTCH PLAY!", "WHAT A TURN!"},
	TierLegendary: {"LEGENDARY MOMENT!", "UNREAL PLAY!"},
}

var vibePacks = map[Vibe]map[Tier][]string{
	VibeStreet: {
		TierLow:       {"CLEAN TOUCH", "SMART MOVE"},
		TierMid:       {"COOKIN'", "RUN IT BACK"},
		TierHigh:      {"THAT'S ICE COLD", "CLUTCH!"},
		TierLegendary: {"BLOCK PARTY ENERGY", "ALL-TIME CLIP"},
	},
	VibeArena: {
		TierLow:       {"GOOD ROTATION", "SOLID EXECUTION"},
		TierMid:       {"MOMENTUM BUILDING", "HIGH-PERCENTAGE PLAY"},
		TierHigh:      {"PLAYOFF CLUTCH", "BIG SWING"},
		TierLegendary: {"CHAMPIONSHIP MOMENT", "BROADCAST CLASSIC"},
	},
	VibeNeon: {
		TierLow:       {"NICE COMBO", "SMOOTH"},
		TierMid:       {"POWER SURGE", "ARCADE HEAT"},
		TierHigh:      {"MAX HYPE", "NEON CLUTCH"},
		TierLegendary: {"COSMIC CLUTCH", "GALAXY MOMENT"},
	},
	VibeChill: {
		TierLow:       {"GOOD FLOW", "STABLE PLAY"},
		TierMid:       {"STRONG RHYTHM", "KEEP IT MOVING"},
		TierHigh:      {"CLEAN CLUTCH", "MOMENT SHIFT"},
		TierLegendary: {"MASTERCLASS", "PEAK MOMENT"},
	},
}

func renderCallout(participantID string, tier Tier, vibe Vibe, familyMode bool) Callout {
	pool := familyPack[tier]
	if !familyMode {
		pack, ok := vibePacks[vibe]
		if !ok {
			pack = vibePacks[VibeArena]
		}
		pool = pack[tier]
	}
	phrase := "BIG PLAY"
	if len(pool) > 0 {
		phrase = pool[rand.Intn(len(pool))]
	}

	var duration int64 = 1000
	if tier == TierLegendary {
		duration = 2200
	} else if tier == TierHigh {
		duration = 1500
	}
	sfx := ""
	if !familyMode {
		if tier == TierLegendary {
			sfx = "legend-hit"
		} else if tier == TierHigh {
			sfx = "hype-hit"
		}
	}
	return Callout{
		Tier:       tier,
		Text:       strings.ToUpper(participantID) + ": " + phrase,
		DurationMs: duration,
		StyleID:    strings.ToLower(string(vibe)) + "-" + strings.ToLower(string(tier)),
		SfxID:      sfx,
	}
}
