package rooms

import (
	"github.com/google/uuid"

	"roomcast/internal/maintenance"
	"roomcast/internal/segment"
	"roomcast/internal/stage"
)

// TickInput carries the process-wide signals a room tick needs.
type TickInput struct {
	NowMs          int64
	Safemode       bool
	SafemodeReason string
	WsHealthy      bool
	TileStalls     int
	Maintenance    maintenance.State
	Banner         string
	EtaSeconds     int64
	Protection     maintenance.ProtectionMode
}

// TickResult reports what changed during one room tick so the scheduler
// can broadcast the right events.
type TickResult struct {
	Swing          bool
	SwingMoment    Moment
	SegmentChanged bool
	Segment        segment.Segment
	SegmentReason  string
	QuietChanged   bool
	QuietActive    bool
	StageChanged   bool
	StageFrom      stage.Mode
	StageTo        stage.Mode
	State          StatePayload
}

// Tick advances all per-room state machines by one scheduler interval.
func (r *Room) Tick(in TickInput) TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := in.NowMs
	var res TickResult

	for id := range r.heat {
		r.heat[id]--
		if r.heat[id] < 0 {
			r.heat[id] = 0
		}
	}

	snap, swing := r.momentum.Recalc(now)
	if swing {
		r.swingCount++
		res.Swing = true
		res.SwingMoment = Moment{
			ID:        uuid.NewString()[:8],
			Ts:        now,
			Type:      "MOMENTUM_SWING",
			Label:     "Momentum shift",
			Intensity: 3,
		}
		r.recordMoment(res.SwingMoment)
	}

	r.pruneEventWindow(now)
	density := float64(len(r.eventTs15s)) / 15
	if r.quiet.Update(now, density) {
		res.QuietChanged = true
		res.QuietActive = r.quiet.Active
	}

	if r.matchStatus == MatchLive {
		elapsed := int64(0)
		if r.matchStartedAt > 0 {
			elapsed = now - r.matchStartedAt
		}
		total := r.matchDurationMs
		if total < 60_000 {
			total = 60_000
		}
		next, changed, reason := segment.Next(r.seg, segment.Signals{
			NowMs:       now,
			ElapsedMs:   elapsed,
			TotalMs:     total,
			ScoreGap:    abs(r.scoreA.Total - r.scoreB.Total),
			LastSwingAt: r.momentum.LastSwingAt(),
		})
		if changed {
			r.seg = next
			res.SegmentChanged = true
			res.Segment = next.Current
			res.SegmentReason = reason
			r.recordMoment(Moment{ID: uuid.NewString()[:8], Ts: now, Type: "SEGMENT_SET", Label: string(next.Current), Intensity: 2})
		}
	}

	sig := stage.Signals{
		Segment:          r.seg.Current,
		MomentumScore:    stage.MomentumScore(snap.Delta, snap.DisplayA, snap.DisplayB),
		EventDensity:     stage.EventDensity(len(r.eventTs15s)),
		SpeakerIntensity: stage.SpeakerIntensity(r.audioFocus != "" && r.audioFocus != "host"),
		ScreenShare:      r.watchStage || r.director.ForceFeatureID != "",
		Closeness:        stage.Closeness(r.scoreA.Total, r.scoreB.Total),
		Safemode:         in.Safemode,
		WsHealthy:        in.WsHealthy,
		TileStalls:       in.TileStalls,
		ForceFeature:     r.director.ForceFeatureID != "",
	}
	if !r.director.Auto {
		sig.LockMode = r.director.LockMode
	}
	layout := stage.Compute(sig)
	if layout.Mode != r.stageMode {
		res.StageChanged = true
		res.StageFrom = r.stageMode
		res.StageTo = layout.Mode
		r.automationLog = append(r.automationLog, AutomationEntry{Ts: now, Action: "stage", Reason: string(r.stageMode) + " -> " + string(layout.Mode)})
		if len(r.automationLog) > maxAutomationLog {
			r.automationLog = r.automationLog[len(r.automationLog)-maxAutomationLog:]
		}
	}
	r.stageMode = layout.Mode
	r.stageLayout = layout
	r.stageContext = sig

	res.State = r.statePayload(in)
	return res
}
