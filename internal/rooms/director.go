package rooms

import "roomcast/internal/stage"

// LockStage pins the stage to a manual mode until AutoStage is called.
func (r *Room) LockStage(mode stage.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.director.Auto = false
	r.director.LockMode = mode
}

// AutoStage returns stage control to the director's signal evaluation.
func (r *Room) AutoStage() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.director = Director{Auto: true, PinnedParticipants: []string{}}
}

// ForceFeature spotlights one participant in the feature tile, or clears
// the override with an empty id.
func (r *Room) ForceFeature(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.director.ForceFeatureID = participantID
}

// PinParticipants replaces the pinned participant list.
func (r *Room) PinParticipants(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids == nil {
		ids = []string{}
	}
	r.director.PinnedParticipants = ids
}

// DirectorState snapshots the override state.
func (r *Room) DirectorState() Director {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.director
	d.PinnedParticipants = append([]string(nil), r.director.PinnedParticipants...)
	return d
}
