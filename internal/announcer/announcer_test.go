package announcer

import (
	"testing"

	"roomcast/internal/segment"
	"roomcast/internal/telemetry"
)

func TestHalftimeRejectsMid(t *testing.T) {
	m := NewMemory()
	_, ok := m.Offer(100_000, segment.HalftimeRecap, false, "p1", telemetry.EventKill, 3, VibeArena, false)
	if ok {
		t.Error("MID callout should be rejected during the halftime recap")
	}
	c, ok := m.Offer(100_000, segment.HalftimeRecap, false, "p1", telemetry.EventKill, 4, VibeArena, false)
	if !ok || c.Tier != TierHigh {
		t.Errorf("HIGH callout should pass during halftime, got ok=%v tier=%s", ok, c.Tier)
	}
}

func TestClosingAcceptsOnlyTopTiers(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.ClosingHighlights, false, "p1", telemetry.EventKill, 3, VibeArena, false); ok {
		t.Error("MID should be rejected during closing highlights")
	}
	if _, ok := m.Offer(100_000, segment.ClosingHighlights, false, "p1", telemetry.EventKill, 1, VibeArena, false); ok {
		t.Error("LOW should be rejected during closing highlights")
	}
	if _, ok := m.Offer(100_000, segment.ClosingHighlights, false, "p1", telemetry.EventKill, 4, VibeArena, false); !ok {
		t.Error("HIGH should pass during closing highlights")
	}
}

func TestRepeatedPatternTagRejected(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventKill, 3, VibeArena, false); !ok {
		t.Fatal("first clutch_finish should pass")
	}
	// Same pattern tag at a higher tier, well past every cooldown.
	if _, ok := m.Offer(160_000, segment.MomentumSwing, false, "p2", telemetry.EventHeadshot, 5, VibeArena, false); ok {
		t.Error("a pattern tag present in the last three callouts must be rejected even at a higher tier")
	}
}

func TestBackToBackSameTierRejected(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventKill, 3, VibeArena, false); !ok {
		t.Fatal("first MID should pass")
	}
	if _, ok := m.Offer(160_000, segment.MomentumSwing, false, "p2", telemetry.EventAssist, 3, VibeArena, false); ok {
		t.Error("back-to-back same tier should be rejected below LEGENDARY")
	}
	// LEGENDARY is exempt from the same-tier rule.
	if _, ok := m.Offer(160_000, segment.MomentumSwing, false, "p2", telemetry.EventGoal, 5, VibeArena, false); !ok {
		t.Error("LEGENDARY after MID should pass")
	}
	m2 := NewMemory()
	if _, ok := m2.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventGoal, 5, VibeArena, false); !ok {
		t.Fatal("first LEGENDARY should pass")
	}
	if _, ok := m2.Offer(160_000, segment.MomentumSwing, false, "p2", telemetry.EventStreak, 5, VibeArena, false); !ok {
		t.Error("back-to-back LEGENDARY is allowed")
	}
}

func TestTemplateCooldown(t *testing.T) {
	m := NewMemory()
	// Cycle two other pattern tags so the kill template leaves memory.
	m.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventKill, 3, VibeArena, false)
	m.Offer(107_000, segment.MomentumSwing, false, "p2", telemetry.EventGoal, 4, VibeArena, false)
	m.Offer(114_000, segment.MomentumSwing, false, "p3", telemetry.EventAssist, 3, VibeArena, false)
	m.Offer(121_000, segment.MomentumSwing, false, "p4", telemetry.EventClutch, 4, VibeArena, false)

	// 25s after the first kill_mid emission its template is still cooling.
	if _, ok := m.Offer(125_000, segment.MomentumSwing, false, "p5", telemetry.EventKill, 3, VibeArena, false); ok {
		t.Error("same template inside 30s should be rejected")
	}
	if _, ok := m.Offer(131_000, segment.MomentumSwing, false, "p5", telemetry.EventKill, 3, VibeArena, false); !ok {
		t.Error("same template after 30s should pass")
	}
}

func TestGlobalCooldownScalesWithIntensity(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventGoal, 5, VibeArena, false); !ok {
		t.Fatal("first LEGENDARY should pass")
	}
	// A legendary emission blocks everything for 20s.
	if _, ok := m.Offer(110_000, segment.MomentumSwing, false, "p2", telemetry.EventStreak, 5, VibeArena, false); ok {
		t.Error("global cooldown after a legendary callout is 20s")
	}
	if _, ok := m.Offer(120_000, segment.MomentumSwing, false, "p2", telemetry.EventStreak, 5, VibeArena, false); !ok {
		t.Error("legendary callout should pass once 20s elapsed")
	}
}

func TestParticipantCooldown(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.MomentumSwing, false, "p1", telemetry.EventKill, 4, VibeArena, false); !ok {
		t.Fatal("first callout should pass")
	}
	// Different tag and tier, past the 2.5s global cooldown, same participant.
	if _, ok := m.Offer(104_000, segment.MomentumSwing, false, "p1", telemetry.EventGoal, 3, VibeArena, false); ok {
		t.Error("same participant inside 6s should be rejected")
	}
	if _, ok := m.Offer(106_500, segment.MomentumSwing, false, "p1", telemetry.EventGoal, 3, VibeArena, false); !ok {
		t.Error("same participant after 6s should pass")
	}
}

func TestQuietModeOnlyLow(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Offer(100_000, segment.MomentumSwing, true, "p1", telemetry.EventKill, 3, VibeArena, false); ok {
		t.Error("quiet mode should reject MID")
	}
	c, ok := m.Offer(100_000, segment.MomentumSwing, true, "p1", telemetry.EventKill, 1, VibeArena, false)
	if !ok || c.Tier != TierLow {
		t.Errorf("quiet mode should accept LOW, got ok=%v tier=%s", ok, c.Tier)
	}
}

func TestQuietEntryNeedsSustainedLull(t *testing.T) {
	var q QuietState
	q.Update(0, 0.1)
	if q.Update(44_000, 0.1) {
		t.Error("quiet mode must not engage before 45s of low density")
	}
	if !q.Update(45_000, 0.1) {
		t.Error("quiet mode should engage after 45s of low density")
	}
	if !q.Active {
		t.Error("state should report active")
	}
}

func TestQuietLullResetByActivity(t *testing.T) {
	var q QuietState
	q.Update(0, 0.1)
	q.Update(30_000, 0.5) // activity resets the lull clock
	q.Update(31_000, 0.1)
	if q.Update(70_000, 0.1) {
		t.Error("lull clock should restart after an active sample")
	}
	if !q.Update(76_000, 0.1) {
		t.Error("quiet mode should engage 45s after the restart")
	}
}

func TestQuietExitHysteresis(t *testing.T) {
	var q QuietState
	q.Update(0, 0.1)
	q.Update(45_000, 0.1)
	if !q.Active {
		t.Fatal("setup: expected quiet mode")
	}

	// Recovery starts at 50s: 10s of recovery passes at 60s, but the
	// 20s minimum stay runs until 65s.
	q.Update(50_000, 0.5)
	if q.Update(60_000, 0.5) {
		t.Error("exit requires 20s in quiet mode")
	}
	if !q.Update(65_000, 0.5) {
		t.Error("exit should happen once both conditions hold")
	}
	if q.Active {
		t.Error("state should report inactive")
	}
}

func TestQuietRecoveryResetByLull(t *testing.T) {
	var q QuietState
	q.Update(0, 0.1)
	q.Update(45_000, 0.1)

	q.Update(70_000, 0.5)
	q.Update(75_000, 0.1) // dip resets the recovery clock
	q.Update(76_000, 0.5)
	if q.Update(85_000, 0.5) {
		t.Error("recovery clock should restart after a dip")
	}
	if !q.Update(86_000, 0.5) {
		t.Error("exit after 10s of uninterrupted recovery")
	}
}

func TestCalloutRendering(t *testing.T) {
	c, ok := NewMemory().Offer(100_000, segment.MomentumSwing, false, "ace", telemetry.EventGoal, 5, VibeNeon, false)
	if !ok {
		t.Fatal("expected a callout")
	}
	if c.DurationMs != 2200 {
		t.Errorf("legendary duration = %d, want 2200", c.DurationMs)
	}
	if c.StyleID != "neon-legendary" {
		t.Errorf("style = %q", c.StyleID)
	}
	if c.SfxID != "legend-hit" {
		t.Errorf("sfx = %q", c.SfxID)
	}
	if c.TemplateID != "goal_legendary" {
		t.Errorf("template = %q", c.TemplateID)
	}
	if c.Text[:4] != "ACE:" {
		t.Errorf("text should lead with the uppercased participant, got %q", c.Text)
	}

	fam, ok := NewMemory().Offer(100_000, segment.MomentumSwing, false, "ace", telemetry.EventGoal, 5, VibeStreet, true)
	if !ok {
		t.Fatal("expected a family-mode callout")
	}
	if fam.SfxID != "" {
		t.Error("family mode suppresses sfx")
	}
}
