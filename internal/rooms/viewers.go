package rooms

import "roomcast/internal/announcer"

// MarkViewer records viewer presence for idle pruning.
func (r *Room) MarkViewer(viewerID string, nowMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers[viewerID] = nowMs
}

// DropViewer removes a viewer immediately.
func (r *Room) DropViewer(viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewers, viewerID)
}

// PruneIdleViewers drops viewers not seen for 30s and returns how many
// were removed.
func (r *Room) PruneIdleViewers(nowMs int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, lastSeen := range r.viewers {
		if nowMs-lastSeen > viewerIdleMs {
			delete(r.viewers, id)
			dropped++
		}
	}
	return dropped
}

// ViewerCount returns the current presence count.
func (r *Room) ViewerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewers)
}

// RecordInteraction counts one viewer interaction toward the broadcast
// score's crowd component.
func (r *Room) RecordInteraction(viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactionIDs[viewerID] = struct{}{}
	r.interactionTotal++
}

// TrimInteractions bounds the unique-interaction set; oldest identity is
// not tracked, so trimming drops arbitrary entries once over cap.
func (r *Room) TrimInteractions(limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.interactionIDs {
		if len(r.interactionIDs) <= limit {
			break
		}
		delete(r.interactionIDs, id)
	}
}

// Vote adds one vote for an option and returns the updated tally.
func (r *Room) Vote(option string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes[option]++
	out := make(map[string]int, len(r.votes))
	for k, v := range r.votes {
		out[k] = v
	}
	return out
}

// Votes returns a copy of the current vote tally.
func (r *Room) Votes() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.votes))
	for k, v := range r.votes {
		out[k] = v
	}
	return out
}

// CrowdTap counts one crowd tap. Every eighth tap reports a hype pulse.
func (r *Room) CrowdTap() (total int, hype bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crowdTaps++
	return r.crowdTaps, r.crowdTaps%crowdTapHypeStep == 0
}

// PowerupAllow layers the power-up cooldowns on top of the action
// bucket: one power-up per room per 8s, one per viewer per 30s.
func (r *Room) PowerupAllow(nowMs int64, viewerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.powerupAt != 0 && nowMs-r.powerupAt < powerupRoomCooldownMs {
		return false
	}
	if last, ok := r.powerupByViewer[viewerID]; ok && nowMs-last < powerupViewerCooldownMs {
		return false
	}
	r.powerupAt = nowMs
	r.powerupByViewer[viewerID] = nowMs
	return true
}

// EmojiAllow enforces the per-second emoji budget.
func (r *Room) EmojiAllow(nowMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec := nowMs / 1000
	if sec != r.emojiSec {
		r.emojiSec = sec
		r.emojiCount = 0
	}
	if r.emojiCount >= emojiPerSecCap {
		return false
	}
	r.emojiCount++
	return true
}

// EmojiBudget reports the budget ceiling and current-second usage.
func (r *Room) EmojiBudget() (max, active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return emojiBudgetMax, r.emojiCount
}

// SetVibe selects the announcer phrase pack.
func (r *Room) SetVibe(v announcer.Vibe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vibe = v
}

// SetFamilyMode toggles the family-safe callout pack.
func (r *Room) SetFamilyMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.familyMode = on
}

// SetAudioFocus moves the active-speaker focus.
func (r *Room) SetAudioFocus(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if participantID == "" {
		participantID = "host"
	}
	r.audioFocus = participantID
}

// SetWatchStage toggles the screen-share style stage mode.
func (r *Room) SetWatchStage(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchStage = on
}

// PushAutomation appends to the bounded automation log.
func (r *Room) PushAutomation(nowMs int64, action, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.automationLog = append(r.automationLog, AutomationEntry{Ts: nowMs, Action: action, Reason: reason})
	if len(r.automationLog) > maxAutomationLog {
		r.automationLog = r.automationLog[len(r.automationLog)-maxAutomationLog:]
	}
}

// AutomationLog returns a copy of the automation entries.
func (r *Room) AutomationLog() []AutomationEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AutomationEntry, len(r.automationLog))
	copy(out, r.automationLog)
	return out
}
