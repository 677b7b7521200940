package rooms

import (
	"roomcast/internal/announcer"
	"roomcast/internal/maintenance"
	"roomcast/internal/score"
	"roomcast/internal/segment"
	"roomcast/internal/stage"
)

// StatePayload is the data half of a room.state broadcast.
type StatePayload struct {
	Maintenance MaintenanceView `json:"maintenance"`
	Segment     SegmentView     `json:"segment"`
	Momentum    MomentumView    `json:"momentum"`
	Broadcast   BroadcastView   `json:"broadcast"`
	Announcer   AnnouncerView   `json:"announcer"`
	Minigames   MinigamesView   `json:"minigames"`
	Protection  ProtectionView  `json:"protection"`
	Safemode    SafemodeView    `json:"safemode"`
	Stage       StageView       `json:"stage"`
}

type MaintenanceView struct {
	State      maintenance.State `json:"state"`
	Banner     string            `json:"banner,omitempty"`
	EtaSeconds int64             `json:"etaSeconds,omitempty"`
}

type SegmentView struct {
	Active    segment.Segment `json:"active"`
	StartedAt int64           `json:"startedAt"`
	Theme     segment.Theme   `json:"theme"`
}

type TeamMomentumView struct {
	Raw     float64 `json:"raw"`
	Display float64 `json:"display"`
}

type MomentumView struct {
	TeamA       TeamMomentumView `json:"teamA"`
	TeamB       TeamMomentumView `json:"teamB"`
	Delta       float64          `json:"delta"`
	LastSwingAt int64            `json:"lastSwingAt"`
}

type BroadcastView struct {
	Score int        `json:"score"`
	Tier  score.Tier `json:"tier"`
}

type AnnouncerView struct {
	QuietMode bool           `json:"quietMode"`
	LastTier  announcer.Tier `json:"lastTier"`
}

type EmojiBudgetView struct {
	Max    int `json:"max"`
	Active int `json:"active"`
}

type MinigamesView struct {
	EmojiBudget EmojiBudgetView `json:"emojiBudget"`
}

type ProtectionView struct {
	Mode maintenance.ProtectionMode `json:"mode"`
}

type SafemodeView struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

type StageView struct {
	Mode     stage.Mode    `json:"mode"`
	Layout   stage.Layout  `json:"layout"`
	Context  stage.Signals `json:"context"`
	Director Director      `json:"director"`
}

// statePayload snapshots the broadcastable room state. Callers hold r.mu.
func (r *Room) statePayload(in TickInput) StatePayload {
	snap := r.momentum.Snapshot()
	return StatePayload{
		Maintenance: MaintenanceView{State: in.Maintenance, Banner: in.Banner, EtaSeconds: in.EtaSeconds},
		Segment: SegmentView{
			Active:    r.seg.Current,
			StartedAt: r.seg.StartedAt,
			Theme:     segment.ThemeFor(r.seg.Current),
		},
		Momentum: MomentumView{
			TeamA:       TeamMomentumView{Raw: snap.RawA, Display: snap.DisplayA},
			TeamB:       TeamMomentumView{Raw: snap.RawB, Display: snap.DisplayB},
			Delta:       snap.Delta,
			LastSwingAt: r.momentum.LastSwingAt(),
		},
		Broadcast:  BroadcastView{Score: r.broadcastScore, Tier: r.broadcastTier},
		Announcer:  AnnouncerView{QuietMode: r.quiet.Active, LastTier: r.announcer.LastTier()},
		Minigames:  MinigamesView{EmojiBudget: EmojiBudgetView{Max: emojiBudgetMax, Active: r.emojiCount}},
		Protection: ProtectionView{Mode: in.Protection},
		Safemode:   SafemodeView{Enabled: in.Safemode, Reason: in.SafemodeReason},
		Stage: StageView{
			Mode:     r.stageMode,
			Layout:   r.stageLayout,
			Context:  r.stageContext,
			Director: r.director,
		},
	}
}

// Summary is the REST view of a room.
type Summary struct {
	Code           string          `json:"roomCode"`
	Lifecycle      Lifecycle       `json:"lifecycle"`
	MatchStatus    MatchStatus     `json:"matchStatus"`
	MatchID        string          `json:"matchId,omitempty"`
	CrewA          string          `json:"crewA"`
	CrewB          string          `json:"crewB"`
	ScoreA         Score           `json:"scoreA"`
	ScoreB         Score           `json:"scoreB"`
	Viewers        int             `json:"viewers"`
	SwingCount     int             `json:"swingCount"`
	Segment        segment.Segment `json:"segment"`
	StageMode      stage.Mode      `json:"stageMode"`
	BroadcastScore int             `json:"broadcastScore"`
	BroadcastTier  score.Tier      `json:"broadcastTier"`
	CreatedAt      int64           `json:"createdAt"`
}

// Summary snapshots the room for REST responses.
func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		Code:           r.Code,
		Lifecycle:      r.lifecycle,
		MatchStatus:    r.matchStatus,
		MatchID:        r.matchID,
		CrewA:          r.crewA,
		CrewB:          r.crewB,
		ScoreA:         r.scoreA,
		ScoreB:         r.scoreB,
		Viewers:        len(r.viewers),
		SwingCount:     r.swingCount,
		Segment:        r.seg.Current,
		StageMode:      r.stageMode,
		BroadcastScore: r.broadcastScore,
		BroadcastTier:  r.broadcastTier,
		CreatedAt:      r.createdAt,
	}
}

// MatchID returns the current match identity, "default" when unset.
func (r *Room) MatchID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matchID == "" {
		return "default"
	}
	return r.matchID
}

// MatchLiveNow reports whether a battle match is running.
func (r *Room) MatchLiveNow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.battleMode && r.matchStatus == MatchLive
}
