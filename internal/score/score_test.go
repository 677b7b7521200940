package score

import "testing"

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierBronze},
		{39, TierBronze},
		{40, TierSilver},
		{59, TierSilver},
		{60, TierGold},
		{74, TierGold},
		{75, TierPlatinum},
		{89, TierPlatinum},
		{90, TierLegendary},
		{100, TierLegendary},
	}
	for _, c := range cases {
		if got := TierFor(c.score); got != c.want {
			t.Errorf("TierFor(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestDeadMatchScoresLow(t *testing.T) {
	got := Compute(Inputs{
		EventCount:           0,
		MatchDurationSeconds: 600,
		FinalScoreGap:        9,
	})
	if got > 25 {
		t.Errorf("empty match scored %d, want a low score", got)
	}
	if TierFor(got) != TierBronze {
		t.Errorf("empty match rated %s, want BRONZE", TierFor(got))
	}
}

func TestLivelyCloseMatchScoresHigh(t *testing.T) {
	got := Compute(Inputs{
		EventCount:           900,
		MatchDurationSeconds: 600,
		UniqueInteractions:   40,
		TotalInteractions:    600,
		SwingCount:           6,
		HighlightCounts: map[string]int{
			"KILL": 20, "HEADSHOT": 15, "GOAL": 10, "ASSIST": 12,
			"OBJECTIVE": 8, "CLUTCH": 5, "STREAK": 4, "SCORE": 18,
		},
		FinalScoreGap: 0,
	})
	if got < 85 {
		t.Errorf("lively close match scored %d, want >= 85", got)
	}
}

func TestSwingCurve(t *testing.T) {
	if got := swingCurve(0); got != 20 {
		t.Errorf("swingCurve(0) = %v, want 20", got)
	}
	if got := swingCurve(6); got != 84 {
		t.Errorf("swingCurve(6) = %v, want 84", got)
	}
	if got := swingCurve(10); got != 73 {
		t.Errorf("swingCurve(10) = %v, want 73", got)
	}
	if got := swingCurve(20); got != 36 {
		t.Errorf("swingCurve(20) = %v, want 36", got)
	}
	if got := swingCurve(30); got != 20 {
		t.Errorf("swingCurve(30) floors at 20, got %v", got)
	}
}

func TestDominantHighlightPenalty(t *testing.T) {
	balanced := highlightDiversity(map[string]int{"KILL": 5, "GOAL": 5, "ASSIST": 5, "CLUTCH": 5})
	skewed := highlightDiversity(map[string]int{"KILL": 50, "GOAL": 2, "ASSIST": 2, "CLUTCH": 2})
	if skewed >= balanced {
		t.Errorf("dominant type should be penalized: skewed %v vs balanced %v", skewed, balanced)
	}
}

func TestShortMatchDurationFloor(t *testing.T) {
	// A 10-second match is scored as if it lasted a minute so density
	// does not explode.
	short := Compute(Inputs{EventCount: 60, MatchDurationSeconds: 10, FinalScoreGap: 5})
	floored := Compute(Inputs{EventCount: 60, MatchDurationSeconds: 60, FinalScoreGap: 5})
	if short != floored {
		t.Errorf("durations under 60s should be floored: %d vs %d", short, floored)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	in := Inputs{
		EventCount:           300,
		MatchDurationSeconds: 480,
		UniqueInteractions:   12,
		TotalInteractions:    90,
		SwingCount:           5,
		HighlightCounts:      map[string]int{"KILL": 8, "GOAL": 3},
		FinalScoreGap:        1,
	}
	if Compute(in) != Compute(in) {
		t.Error("score must be deterministic for identical inputs")
	}
}
