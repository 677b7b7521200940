package telemetry

// EventType enumerates the normalized gameplay moments the engine accepts.
type EventType string

const (
	EventHeadshot  = EventType("HEADSHOT")
	EventKill      = EventType("KILL")
	EventScore     = EventType("SCORE")
	EventGoal      = EventType("GOAL")
	EventAssist    = EventType("ASSIST")
	EventObjective = EventType("OBJECTIVE")
	EventClutch    = EventType("CLUTCH")
	EventStreak    = EventType("STREAK")
	EventWin       = EventType("WIN")
	EventLoss      = EventType("LOSS")
	EventHighlight = EventType("HIGHLIGHT")
)

// ScoreWeights is the per-type contribution to the telemetry score.
var ScoreWeights = map[EventType]int{
	EventHeadshot:  5,
	EventKill:      3,
	EventScore:     4,
	EventGoal:      4,
	EventAssist:    2,
	EventObjective: 3,
	EventClutch:    5,
	EventStreak:    4,
	EventWin:       8,
	EventLoss:      0,
	EventHighlight: 3,
}

// MomentumWeight is the per-type base value fed into the momentum window.
func MomentumWeight(t EventType) float64 {
	switch t {
	case EventKill, EventHeadshot:
		return 3
	case EventAssist:
		return 2
	case EventObjective, EventGoal:
		return 4
	default:
		return 1
	}
}

// ValidType reports whether t is a known event type.
func ValidType(t EventType) bool {
	_, ok := ScoreWeights[t]
	return ok
}

// Candidate is an unvalidated submission offered to the pipeline.
type Candidate struct {
	ParticipantID string             `json:"participantId"`
	Type          EventType          `json:"type"`
	Intensity     int                `json:"intensity"`
	StatDelta     map[string]float64 `json:"statDelta"`
	MatchID       string             `json:"matchId,omitempty"`
	ClientTs      int64              `json:"clientTs,omitempty"`
}

// Event is an accepted, normalized telemetry event. Ts is server-assigned
// and strictly increasing per participant.
type Event struct {
	ID            string             `json:"eventId"`
	RoomCode      string             `json:"roomCode"`
	MatchID       string             `json:"matchId"`
	ParticipantID string             `json:"participantId"`
	Ts            int64              `json:"ts"`
	Type          EventType          `json:"type"`
	Intensity     int                `json:"intensity"`
	StatDelta     map[string]float64 `json:"statDelta"`
	ClientTs      int64              `json:"clientTs,omitempty"`
}

// Discard reasons. Discards are not errors; producers should not retry.
const (
	DiscardLowConfidence = "LOW_CONFIDENCE"
	DiscardDedupe        = "DEDUPE"
)
