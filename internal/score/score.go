// Package score computes the end-of-match broadcast quality score.
package score

import "math"

// Tier is the broadcast rating band.
type Tier string

const (
	TierBronze    = Tier("BRONZE")
	TierSilver    = Tier("SILVER")
	TierGold      = Tier("GOLD")
	TierPlatinum  = Tier("PLATINUM")
	TierLegendary = Tier("LEGENDARY")
)

// TierFor maps a 0-100 broadcast score to its rating band.
func TierFor(score int) Tier {
	switch {
	case score >= 90:
		return TierLegendary
	case score >= 75:
		return TierPlatinum
	case score >= 60:
		return TierGold
	case score >= 40:
		return TierSilver
	default:
		return TierBronze
	}
}

const highlightTypesPossible = 8

// Inputs are the match aggregates the score is derived from.
type Inputs struct {
	EventCount           int
	MatchDurationSeconds int
	UniqueInteractions   int
	TotalInteractions    int
	SwingCount           int
	HighlightCounts      map[string]int
	FinalScoreGap        int
}

// Compute blends five match-quality components into a 0-100 score:
// event density (30%), crowd interaction (25%), momentum swings (20%),
// highlight diversity (15%), and match balance (10%).
func Compute(in Inputs) int {
	durSeconds := in.MatchDurationSeconds
	if durSeconds < 60 {
		durSeconds = 60
	}

	density := float64(in.EventCount) / float64(durSeconds)
	eventDensityScore := 100 * (1 - math.Exp(-density/0.8))

	perMin := float64(in.TotalInteractions) / math.Max(1, float64(durSeconds)/60)
	crowdInteractionScore := math.Min(100, float64(in.UniqueInteractions)*3*0.7+perMin*0.3)

	swingScore := clamp100(swingCurve(in.SwingCount))
	diversityScore := highlightDiversity(in.HighlightCounts)
	balanceScore := matchBalance(in.FinalScoreGap)

	total := math.Round(
		eventDensityScore*0.3 +
			crowdInteractionScore*0.25 +
			swingScore*0.2 +
			diversityScore*0.15 +
			balanceScore*0.1)
	return int(clamp100(total))
}

// swingCurve rewards a handful of swings and penalizes both flat matches
// and chaotic ones.
func swingCurve(swings int) float64 {
	switch {
	case swings < 2:
		return 20
	case swings > 12:
		return math.Max(20, 100-float64(swings-12)*8)
	case swings <= 8:
		return 70 + float64(swings-4)*7
	default:
		return 85 - float64(swings-8)*6
	}
}

func highlightDiversity(counts map[string]int) float64 {
	total := 0
	max := 0
	for _, c := range counts {
		total += c
		if c > max {
			max = c
		}
	}
	score := float64(len(counts)) / highlightTypesPossible * 100
	if total > 0 && float64(max)/float64(total) > 0.6 {
		score -= 20
	}
	return clamp100(score)
}

func matchBalance(gap int) float64 {
	switch gap {
	case 0:
		return 100
	case 1:
		return 85
	case 2:
		return 65
	default:
		return 40
	}
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
