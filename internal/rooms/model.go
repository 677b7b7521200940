package rooms

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"roomcast/internal/announcer"
	"roomcast/internal/maintenance"
	"roomcast/internal/momentum"
	"roomcast/internal/score"
	"roomcast/internal/segment"
	"roomcast/internal/stage"
	"roomcast/internal/telemetry"
)

// Lifecycle is the monotonic room lifecycle.
type Lifecycle string

const (
	LifecycleCreated  = Lifecycle("CREATED")
	LifecycleActive   = Lifecycle("ACTIVE")
	LifecycleEnded    = Lifecycle("ENDED")
	LifecycleArchived = Lifecycle("ARCHIVED")
)

var lifecycleRank = map[Lifecycle]int{
	LifecycleCreated:  0,
	LifecycleActive:   1,
	LifecycleEnded:    2,
	LifecycleArchived: 3,
}

// MatchStatus is the battle-mode match phase.
type MatchStatus string

const (
	MatchPending = MatchStatus("PENDING")
	MatchLive    = MatchStatus("LIVE")
	MatchEnded   = MatchStatus("ENDED")
)

const (
	maxEventHistory  = 500
	maxMoments       = 500
	maxAutomationLog = 20
	heatPerIntensity = 8
	heatCap          = 100
	eventWindowMs    = 15_000
	viewerIdleMs     = 30_000
	emojiBudgetMax   = 120
	emojiPerSecCap   = 12
	crowdTapHypeStep = 8

	powerupRoomCooldownMs   = 8_000
	powerupViewerCooldownMs = 30_000
)

// Score is one crew's running match score.
type Score struct {
	Base      int `json:"scoreBase"`
	Telemetry int `json:"scoreTelemetry"`
	Total     int `json:"scoreTotal"`
}

func (s *Score) recompute() {
	s.Total = s.Base + s.Telemetry
}

// Moment is a recorded notable occurrence kept in a bounded per-room log.
type Moment struct {
	ID            string `json:"id"`
	Ts            int64  `json:"ts"`
	Type          string `json:"type"`
	Label         string `json:"label"`
	ParticipantID string `json:"participantId,omitempty"`
	Intensity     int    `json:"intensity,omitempty"`
}

// AutomationEntry records one automated presentation action.
type AutomationEntry struct {
	Ts     int64  `json:"ts"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Director holds the manual stage override state.
type Director struct {
	Auto               bool       `json:"auto"`
	LockMode           stage.Mode `json:"lockMode,omitempty"`
	ForceFeatureID     string     `json:"forceFeatureParticipantId,omitempty"`
	PinnedParticipants []string   `json:"pinnedParticipants"`
}

// Room owns all state for one session. All exported methods lock; the
// scheduler and request handlers share a room through them.
type Room struct {
	mu sync.Mutex

	Code            string
	lifecycle       Lifecycle
	familyMode      bool
	battleMode      bool
	matchStatus     MatchStatus
	matchID         string
	matchStartedAt  int64
	matchDurationMs int64

	crewA  string
	crewB  string
	scoreA Score
	scoreB Score
	roster map[string]momentum.Team

	viewers          map[string]int64
	votes            map[string]int
	crowdTaps        int
	powerupAt        int64
	powerupByViewer  map[string]int64
	emojiSec         int64
	emojiCount       int
	interactionIDs   map[string]struct{}
	interactionTotal int

	eventHistory    []telemetry.Event
	moments         []Moment
	automationLog   []AutomationEntry
	heat            map[string]float64
	highlightCounts map[string]int
	eventTs15s      []int64

	momentum   *momentum.Tracker
	seg        segment.State
	announcer  *announcer.Memory
	quiet      announcer.QuietState
	vibe       announcer.Vibe
	audioFocus string
	watchStage bool
	director   Director

	stageMode    stage.Mode
	stageLayout  stage.Layout
	stageContext stage.Signals

	maintenanceState maintenance.State

	broadcastScore int
	broadcastTier  score.Tier
	swingCount     int
	createdAt      int64
}

func NewRoom(code string, nowMs int64) *Room {
	return &Room{
		Code:             code,
		lifecycle:        LifecycleCreated,
		matchStatus:      MatchPending,
		matchDurationMs:  10 * 60_000,
		crewA:            "Crew A",
		crewB:            "Crew B",
		roster:           map[string]momentum.Team{},
		viewers:          map[string]int64{},
		votes:            map[string]int{},
		powerupByViewer:  map[string]int64{},
		interactionIDs:   map[string]struct{}{},
		heat:             map[string]float64{},
		highlightCounts:  map[string]int{},
		momentum:         momentum.NewTracker(),
		seg:              segment.NewState(nowMs),
		announcer:        announcer.NewMemory(),
		vibe:             announcer.VibeArena,
		audioFocus:       "host",
		director:         Director{Auto: true, PinnedParticipants: []string{}},
		stageMode:        stage.ModeLobby,
		maintenanceState: maintenance.StateActive,
		broadcastTier:    score.TierBronze,
		createdAt:        nowMs,
	}
}

// Lifecycle returns the current lifecycle state.
func (r *Room) Lifecycle() Lifecycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lifecycle
}

// advanceLifecycle enforces monotonic progression. Callers hold r.mu.
func (r *Room) advanceLifecycle(to Lifecycle) error {
	if lifecycleRank[to] < lifecycleRank[r.lifecycle] {
		return fmt.Errorf("lifecycle cannot regress from %s to %s", r.lifecycle, to)
	}
	r.lifecycle = to
	return nil
}

// AssignTeam places a participant on a crew roster.
func (r *Room) AssignTeam(participantID string, team momentum.Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roster[participantID] = team
}

// teamFor resolves a participant's crew. Unrostered participants are
// assigned on first sight, alternating to keep crews balanced. Callers
// hold r.mu.
func (r *Room) teamFor(participantID string) momentum.Team {
	if team, ok := r.roster[participantID]; ok {
		return team
	}
	team := momentum.TeamA
	if len(r.roster)%2 == 1 {
		team = momentum.TeamB
	}
	r.roster[participantID] = team
	return team
}

// StartMatch flips the room into a live battle and resets the per-match
// aggregates.
func (r *Room) StartMatch(nowMs int64, crewA, crewB string, durationMs int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.advanceLifecycle(LifecycleActive); err != nil {
		return "", err
	}
	r.battleMode = true
	r.matchStatus = MatchLive
	if r.matchID == "" {
		r.matchID = "match_" + uuid.NewString()[:8]
	}
	r.matchStartedAt = nowMs
	if durationMs > 0 {
		r.matchDurationMs = durationMs
	}
	if crewA != "" {
		r.crewA = crewA
	}
	if crewB != "" {
		r.crewB = crewB
	}
	r.scoreA = Score{}
	r.scoreB = Score{}
	r.swingCount = 0
	r.eventTs15s = nil
	r.highlightCounts = map[string]int{}
	r.interactionIDs = map[string]struct{}{}
	r.interactionTotal = 0
	r.momentum.Reset()
	r.seg = segment.NewState(nowMs)
	r.recordMoment(Moment{ID: uuid.NewString()[:8], Ts: nowMs, Type: "MATCH_START", Label: r.crewA + " vs " + r.crewB})
	return r.matchID, nil
}

// MatchResult is the outcome computed when a match ends.
type MatchResult struct {
	MatchID        string     `json:"matchId"`
	Winner         string     `json:"winner"`
	BroadcastScore int        `json:"broadcastScore"`
	BroadcastTier  score.Tier `json:"broadcastTier"`
	ScoreA         Score      `json:"scoreA"`
	ScoreB         Score      `json:"scoreB"`
	SwingCount     int        `json:"swingCount"`
	StartedAtMs    int64      `json:"startedAt"`
	EndedAtMs      int64      `json:"endedAt"`
}

// EndMatch closes a live match, computes the broadcast score, and resets
// the director. Large collections are cleared later by Archive.
func (r *Room) EndMatch(nowMs int64) (MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.advanceLifecycle(LifecycleEnded); err != nil {
		return MatchResult{}, err
	}
	r.matchStatus = MatchEnded
	r.battleMode = false
	r.director = Director{Auto: true, PinnedParticipants: []string{}}

	durSeconds := int(r.matchDurationMs / 1000)
	if r.matchStartedAt > 0 {
		durSeconds = int((nowMs - r.matchStartedAt) / 1000)
	}
	r.broadcastScore = score.Compute(score.Inputs{
		EventCount:           len(r.eventHistory),
		MatchDurationSeconds: durSeconds,
		UniqueInteractions:   len(r.interactionIDs),
		TotalInteractions:    r.interactionTotal,
		SwingCount:           r.swingCount,
		HighlightCounts:      r.highlightCounts,
		FinalScoreGap:        abs(r.scoreA.Total - r.scoreB.Total),
	})
	r.broadcastTier = score.TierFor(r.broadcastScore)

	winner := r.crewA
	if r.scoreB.Total > r.scoreA.Total {
		winner = r.crewB
	}
	r.recordMoment(Moment{ID: uuid.NewString()[:8], Ts: nowMs, Type: "MATCH_END", Label: "Winner " + winner, Intensity: 3})
	return MatchResult{
		MatchID:        r.matchID,
		Winner:         winner,
		BroadcastScore: r.broadcastScore,
		BroadcastTier:  r.broadcastTier,
		ScoreA:         r.scoreA,
		ScoreB:         r.scoreB,
		SwingCount:     r.swingCount,
		StartedAtMs:    r.matchStartedAt,
		EndedAtMs:      nowMs,
	}, nil
}

// Archive clears the large per-match collections and finalizes the
// lifecycle. Invoked on a short delay after EndMatch.
func (r *Room) Archive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.advanceLifecycle(LifecycleArchived); err != nil {
		return err
	}
	r.eventHistory = nil
	r.moments = nil
	r.eventTs15s = nil
	r.highlightCounts = map[string]int{}
	r.interactionIDs = map[string]struct{}{}
	r.interactionTotal = 0
	r.powerupByViewer = map[string]int64{}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
