package rooms

import (
	"roomcast/internal/announcer"
	"roomcast/internal/momentum"
	"roomcast/internal/telemetry"
)

// AcceptOutcome describes the room-side effects of one accepted event,
// for the caller to broadcast.
type AcceptOutcome struct {
	Heat         map[string]float64
	Moment       Moment
	Callout      *announcer.Callout
	ScoreUpdated bool
	ScoreA       Score
	ScoreB       Score
}

// ApplyAccepted folds an accepted telemetry event into the room: heat,
// bounded history, highlight counts, the momentum window, a moment, the
// live score, and an announcer offer.
func (r *Room) ApplyAccepted(ev telemetry.Event) AcceptOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.eventHistory = append(r.eventHistory, ev)
	if len(r.eventHistory) > maxEventHistory {
		r.eventHistory = r.eventHistory[len(r.eventHistory)-maxEventHistory:]
	}

	intensity := ev.Intensity
	if intensity < 1 {
		intensity = 1
	}
	r.heat[ev.ParticipantID] = min100(r.heat[ev.ParticipantID] + float64(intensity)*heatPerIntensity)
	r.highlightCounts[string(ev.Type)]++

	r.eventTs15s = append(r.eventTs15s, ev.Ts)
	r.pruneEventWindow(ev.Ts)

	team := r.teamFor(ev.ParticipantID)
	r.momentum.Append(team, ev.Ts, momentum.Value(telemetry.MomentumWeight(ev.Type), ev.Intensity))

	moment := Moment{
		ID:            ev.ID,
		Ts:            ev.Ts,
		Type:          "GAME_EVENT",
		Label:         string(ev.Type),
		ParticipantID: ev.ParticipantID,
		Intensity:     intensity,
	}
	r.recordMoment(moment)

	out := AcceptOutcome{Heat: r.heatCopy(), Moment: moment}

	if callout, ok := r.announcer.Offer(ev.Ts, r.seg.Current, r.quiet.Active, ev.ParticipantID, ev.Type, intensity, r.vibe, r.familyMode); ok {
		out.Callout = &callout
	}

	if r.battleMode && r.matchStatus == MatchLive {
		side := &r.scoreA
		if team == momentum.TeamB {
			side = &r.scoreB
		}
		side.Telemetry += intensity * telemetry.ScoreWeights[ev.Type]
		side.recompute()
		out.ScoreUpdated = true
		out.ScoreA = r.scoreA
		out.ScoreB = r.scoreB
	}
	return out
}

func (r *Room) recordMoment(m Moment) {
	r.moments = append(r.moments, m)
	if len(r.moments) > maxMoments {
		r.moments = r.moments[len(r.moments)-maxMoments:]
	}
}

// RecordMoment appends to the bounded moment log.
func (r *Room) RecordMoment(m Moment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordMoment(m)
}

// Moments returns a copy of the moment log, newest last.
func (r *Room) Moments() []Moment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Moment, len(r.moments))
	copy(out, r.moments)
	return out
}

func (r *Room) pruneEventWindow(nowMs int64) {
	kept := r.eventTs15s[:0]
	for _, ts := range r.eventTs15s {
		if nowMs-ts <= eventWindowMs {
			kept = append(kept, ts)
		}
	}
	r.eventTs15s = kept
}

func (r *Room) heatCopy() map[string]float64 {
	out := make(map[string]float64, len(r.heat))
	for k, v := range r.heat {
		out[k] = v
	}
	return out
}

// Heat returns a copy of the per-participant heat map.
func (r *Room) Heat() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heatCopy()
}

func min100(v float64) float64 {
	if v > heatCap {
		return heatCap
	}
	return v
}
