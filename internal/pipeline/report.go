package pipeline

import (
	"fmt"
	"strings"

	"github.com/rclaybrook/homedeck/internal/market"
)

// FinancialDisclaimer closes every investment and research report.
const FinancialDisclaimer = "*Disclaimer: This is not financial advice. This analysis is for informational purposes only. Always do your own research and consult a licensed financial advisor before making investment decisions.*"

// renderInvestmentReport assembles the fixed-section investment report.
// Sections for unavailable data are replaced with an explicit note rather
// than omitted silently. The disclaimer is always the final line.
func renderInvestmentReport(parsed ParsedQuery, snap *market.Snapshot, fundamentals, technical string, mood *market.MarketMood, moodText string, rec *Recommendation) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Investment Analysis: %s\n\n", parsed.Symbol)

	sb.WriteString("## Market Snapshot\n")
	if snap != nil {
		fmt.Fprintf(&sb, "- Price: $%.2f (%+.2f%% 24h)\n", snap.Price, snap.Change24h)
		fmt.Fprintf(&sb, "- 52-week range: $%.2f – $%.2f\n", snap.Low52w, snap.High52w)
		fmt.Fprintf(&sb, "- SMA20: $%.2f | SMA50: $%.2f | Trend: %s\n", snap.SMA20, snap.SMA50, snap.Trend)
	} else {
		sb.WriteString("Live quote data unavailable.\n")
	}
	sb.WriteString("\n")

	if fundamentals != "" {
		fmt.Fprintf(&sb, "## Fundamentals\n%s\n\n", strings.TrimSpace(fundamentals))
	}

	sb.WriteString("## Technical View\n")
	if technical != "" {
		sb.WriteString(strings.TrimSpace(technical) + "\n\n")
	} else {
		sb.WriteString("Technical read unavailable.\n\n")
	}

	sb.WriteString("## Market Context\n")
	if moodText != "" {
		sb.WriteString(strings.TrimSpace(moodText) + "\n")
		if mood != nil && len(mood.Indices) > 0 {
			var parts []string
			for _, idx := range mood.Indices {
				parts = append(parts, fmt.Sprintf("%s %+.2f%%", idx.Name, idx.Change24h))
			}
			fmt.Fprintf(&sb, "(%s)\n", strings.Join(parts, ", "))
		}
	} else {
		sb.WriteString("Index data unavailable.\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Recommendation: %s (confidence %d/100)\n", rec.Action, rec.Confidence)
	fmt.Fprintf(&sb, "- Position: %s | Risk level: %s\n", rec.PositionType, rec.RiskLevel)
	if rec.EntryPrice > 0 {
		fmt.Fprintf(&sb, "- Entry: $%.2f | Stop loss: $%.2f | Target: $%.2f\n", rec.EntryPrice, rec.StopLoss, rec.TargetPrice)
	}
	fmt.Fprintf(&sb, "\n%s\n\n", strings.TrimSpace(rec.Reasoning))

	if len(rec.KeyFactors) > 0 {
		sb.WriteString("## Key Factors\n")
		for _, f := range rec.KeyFactors {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Risk Warning\n%s\n\n", strings.TrimSpace(rec.RiskWarning))

	sb.WriteString(FinancialDisclaimer)
	return sb.String()
}

// renderResearchReport assembles the fixed-section research report, ending
// with the disclaimer.
func renderResearchReport(niche, trends, competition string, sizing *MarketSize, painPoints []string, score ScoreBreakdown, recommendations string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Market Research: %s\n\n", niche)

	fmt.Fprintf(&sb, "## Executive Summary\nOpportunity score **%.0f/100** (%s tier).\n\n", score.Total, score.Tier)

	sb.WriteString("## Market Trends\n")
	if trends != "" {
		sb.WriteString(strings.TrimSpace(trends) + "\n\n")
	} else {
		sb.WriteString("Trend analysis unavailable.\n\n")
	}

	sb.WriteString("## Competitive Landscape\n")
	if competition != "" {
		sb.WriteString(strings.TrimSpace(competition) + "\n\n")
	} else {
		sb.WriteString("Competition analysis unavailable.\n\n")
	}

	sb.WriteString("## Market Size\n")
	fmt.Fprintf(&sb, "- TAM: %s\n- SAM: %s\n- SOM: %s\n", sizing.TAM, sizing.SAM, sizing.SOM)
	if sizing.Reasoning != "" {
		sb.WriteString(strings.TrimSpace(sizing.Reasoning) + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Pain Points\n")
	if len(painPoints) > 0 {
		for _, p := range painPoints {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	} else {
		sb.WriteString("No pain points identified.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Score Breakdown\n")
	fmt.Fprintf(&sb, "- Base: %.0f\n- Growth adjustment: %+.0f\n- Competition adjustment: %+.0f\n- Pain-point bonus: %+.0f\n- **Total: %.0f (%s)**\n\n",
		score.Base, score.GrowthAdjust, score.CompetitionAdjust, score.PainBonus, score.Total, score.Tier)

	sb.WriteString("## Recommendations\n")
	if recommendations != "" {
		sb.WriteString(strings.TrimSpace(recommendations) + "\n\n")
	} else {
		sb.WriteString("Strategic recommendations unavailable.\n\n")
	}

	sb.WriteString("## Next Steps\n")
	switch score.Tier {
	case TierStrong:
		sb.WriteString("Validate demand with a small paid test, then commit to the strongest entry strategy above.\n\n")
	case TierModerate:
		sb.WriteString("Run the validation steps above before committing resources; revisit the score afterward.\n\n")
	default:
		sb.WriteString("Deprioritize this niche; revisit only if the market conditions above change materially.\n\n")
	}

	sb.WriteString(FinancialDisclaimer)
	return sb.String()
}
