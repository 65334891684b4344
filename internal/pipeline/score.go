package pipeline

import "strings"

// Opportunity-score tier labels.
const (
	TierStrong   = "strong"
	TierModerate = "moderate"
	TierWeak     = "weak"
)

// ScoreBreakdown shows how an opportunity score was assembled. The score is
// derived fresh for every report and never stored on its own.
type ScoreBreakdown struct {
	Base              float64 `json:"base"`
	GrowthAdjust      float64 `json:"growth_adjust"`
	CompetitionAdjust float64 `json:"competition_adjust"`
	PainBonus         float64 `json:"pain_bonus"`
	Total             float64 `json:"total"`
	Tier              string  `json:"tier"`
}

// OpportunityScore computes a deterministic niche-opportunity score from the
// trend direction, competition level, and identified pain points. No model
// call is involved; identical inputs always produce identical output. The
// total is clamped to [0,100].
func OpportunityScore(trends, competition string, painPoints []string) ScoreBreakdown {
	b := ScoreBreakdown{Base: 50}

	switch classifyGrowth(trends) {
	case "growing":
		b.GrowthAdjust = 20
	case "declining":
		b.GrowthAdjust = -20
	}

	switch classifyCompetition(competition) {
	case "low":
		b.CompetitionAdjust = 15
	case "high":
		b.CompetitionAdjust = -15
	}

	// Each articulated pain point signals demand, capped so a long list
	// cannot dominate the score.
	b.PainBonus = float64(len(painPoints)) * 3
	if b.PainBonus > 15 {
		b.PainBonus = 15
	}

	b.Total = b.Base + b.GrowthAdjust + b.CompetitionAdjust + b.PainBonus
	if b.Total > 100 {
		b.Total = 100
	}
	if b.Total < 0 {
		b.Total = 0
	}

	switch {
	case b.Total >= 70:
		b.Tier = TierStrong
	case b.Total >= 40:
		b.Tier = TierModerate
	default:
		b.Tier = TierWeak
	}
	return b
}

// classifyGrowth reduces free-form trend text to growing/stable/declining.
func classifyGrowth(trends string) string {
	t := strings.ToLower(trends)
	switch {
	case strings.Contains(t, "grow") || strings.Contains(t, "expand") || strings.Contains(t, "rising") || strings.Contains(t, "surging"):
		return "growing"
	case strings.Contains(t, "declin") || strings.Contains(t, "shrink") || strings.Contains(t, "falling") || strings.Contains(t, "contract"):
		return "declining"
	default:
		return "stable"
	}
}

// classifyCompetition reduces free-form competition text to low/moderate/high.
func classifyCompetition(competition string) string {
	c := strings.ToLower(competition)
	switch {
	case strings.Contains(c, "low competition") || strings.Contains(c, "few competitors") || strings.Contains(c, "underserved") || strings.HasPrefix(c, "low"):
		return "low"
	case strings.Contains(c, "high competition") || strings.Contains(c, "saturated") || strings.Contains(c, "crowded") || strings.Contains(c, "intense") || strings.HasPrefix(c, "high"):
		return "high"
	default:
		return "moderate"
	}
}
