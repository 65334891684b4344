package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rclaybrook/homedeck/internal/router"
)

// Research runs the seven-node market-research flow.
type Research struct {
	router ModelRouter
}

// NewResearch creates the research pipeline over a router.
func NewResearch(r ModelRouter) *Research {
	return &Research{router: r}
}

// MarketSize is the TAM/SAM/SOM estimate. Fields are free-form because the
// model reports ranges and qualifiers, not clean numbers.
type MarketSize struct {
	TAM       string `json:"tam"`
	SAM       string `json:"sam"`
	SOM       string `json:"som"`
	Reasoning string `json:"reasoning"`
}

// ResearchResult is the pipeline's output: the rendered report plus the
// structured fields the caller persists to memory.
type ResearchResult struct {
	Niche  string
	Score  float64
	Tier   string
	Report string
	Nodes  []NodeResult
}

// Run executes the pipeline. Nodes run sequentially; each model failure
// degrades its own section and the scorer works on whatever text survived.
func (p *Research) Run(ctx context.Context, query string) (*ResearchResult, error) {
	res := &ResearchResult{}
	note := func(name string, status NodeStatus) {
		res.Nodes = append(res.Nodes, NodeResult{Name: name, Status: status})
		if status != StatusOK {
			log.Warn().Str("node", name).Str("status", string(status)).Msg("research node degraded")
		}
	}

	niche := p.identifyNiche(ctx, query, note)
	res.Niche = niche

	trends := p.analyze(ctx, "trends", note, fmt.Sprintf(
		"Describe the current market trends for the %q niche in 3-4 sentences. Start with whether the market is growing, stable, or declining.", niche))

	competition := p.analyze(ctx, "competition", note, fmt.Sprintf(
		"Describe the competitive landscape for the %q niche in 3-4 sentences. Start with whether competition is low, moderate, or high, then name the main player types.", niche))

	sizing := p.estimateMarketSize(ctx, niche, note)

	painText := p.analyze(ctx, "pain_points", note, fmt.Sprintf(
		"List the top 3-5 unsolved customer pain points in the %q niche, one per line, most severe first.", niche))
	painPoints := bulletLines(painText)

	score := OpportunityScore(trends, competition, painPoints)
	note("score", StatusOK)
	res.Score = score.Total
	res.Tier = score.Tier

	recommendations := p.recommend(ctx, niche, trends, competition, painPoints, score, note)

	res.Report = renderResearchReport(niche, trends, competition, sizing, painPoints, score, recommendations)

	// Every model node failing means there is nothing real in the report.
	if allDegraded(res.Nodes) {
		report, err := p.noDataFallback(ctx, query)
		if err != nil {
			return nil, err
		}
		res.Report = report
	}
	return res, nil
}

// identifyNiche extracts the niche at light tier; an unusable answer falls
// back to the raw query so downstream prompts still have a subject.
func (p *Research) identifyNiche(ctx context.Context, query string, note func(string, NodeStatus)) string {
	prompt := fmt.Sprintf("State the market niche this question is about in at most 8 words, with no other text.\n\nQuestion: %s", query)

	out, err := p.router.InvokeTask(ctx, "identify", userMessages(prompt), "")
	niche := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if err != nil || niche == "" || strings.Count(niche, " ") > 10 {
		note("niche", StatusDegraded)
		return strings.TrimSpace(query)
	}
	note("niche", StatusOK)
	return niche
}

// analyze runs one standard-tier analysis node, degrading to empty text.
func (p *Research) analyze(ctx context.Context, name string, note func(string, NodeStatus), prompt string) string {
	out, err := p.router.InvokeTask(ctx, "analyze", userMessages(prompt), "")
	if err != nil {
		note(name, StatusDegraded)
		return ""
	}
	note(name, StatusOK)
	return out
}

func (p *Research) estimateMarketSize(ctx context.Context, niche string, note func(string, NodeStatus)) *MarketSize {
	prompt := fmt.Sprintf(`Estimate the market size for the %q niche. Respond with only a JSON object:
{"tam": "<total addressable market>", "sam": "<serviceable addressable market>", "som": "<serviceable obtainable market>", "reasoning": "<1-2 sentences>"}`, niche)

	out, err := p.router.InvokeTask(ctx, "analyze", userMessages(prompt), "")
	if err != nil {
		note("market_size", StatusDegraded)
		return &MarketSize{TAM: "unknown", SAM: "unknown", SOM: "unknown"}
	}

	size := &MarketSize{}
	if !decodeModelJSON(out, size) {
		note("market_size", StatusDegraded)
		return &MarketSize{TAM: "unknown", SAM: "unknown", SOM: "unknown", Reasoning: strings.TrimSpace(out)}
	}
	if size.TAM == "" {
		size.TAM = "unknown"
	}
	if size.SAM == "" {
		size.SAM = "unknown"
	}
	if size.SOM == "" {
		size.SOM = "unknown"
	}
	note("market_size", StatusOK)
	return size
}

// recommend generates strategy at premium tier, with the computed score and
// tier in the prompt so advice matches the opportunity strength.
func (p *Research) recommend(ctx context.Context, niche, trends, competition string, painPoints []string, score ScoreBreakdown, note func(string, NodeStatus)) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Niche: %s\nOpportunity score: %.0f/100 (%s)\n", niche, score.Total, score.Tier)
	if trends != "" {
		fmt.Fprintf(&sb, "Trends: %s\n", trends)
	}
	if competition != "" {
		fmt.Fprintf(&sb, "Competition: %s\n", competition)
	}
	if len(painPoints) > 0 {
		fmt.Fprintf(&sb, "Pain points: %s\n", strings.Join(painPoints, "; "))
	}
	switch score.Tier {
	case TierStrong:
		sb.WriteString("\nGive 3-5 concrete entry strategies for this strong opportunity, one per line.")
	case TierModerate:
		sb.WriteString("\nGive 3-5 cautious validation steps for this moderate opportunity, one per line.")
	default:
		sb.WriteString("\nGive 2-3 reasons to avoid or pivot away from this weak opportunity, one per line.")
	}

	out, err := p.router.InvokeTask(ctx, "recommend", userMessages(sb.String()), "")
	if err != nil {
		note("recommend", StatusDegraded)
		return ""
	}
	note("recommend", StatusOK)
	return out
}

// allDegraded reports whether no model-backed node succeeded.
func allDegraded(nodes []NodeResult) bool {
	for _, n := range nodes {
		if n.Name == "score" {
			continue // the scorer is local and always runs
		}
		if n.Status == StatusOK {
			return false
		}
	}
	return true
}

// noDataFallback produces a best-effort answer when every analysis node
// failed, with the limitation disclosed in the report.
func (p *Research) noDataFallback(ctx context.Context, query string) (string, error) {
	out, err := p.router.Invoke(ctx, router.TierPremium, userMessages(query),
		"You are a pragmatic market researcher. Detailed analysis is unavailable; give your best short answer from general knowledge.")
	if err != nil {
		return "", fmt.Errorf("research fallback: %w", err)
	}
	return out + "\n\n*Note: detailed analysis was unavailable for this report.*\n\n" + FinancialDisclaimer, nil
}
