package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rclaybrook/homedeck/internal/market"
	"github.com/rclaybrook/homedeck/internal/router"
)

// Investment runs the six-node stock/asset analysis flow.
type Investment struct {
	router ModelRouter
	feed   MarketFeed
}

// NewInvestment creates the investment pipeline over a router and market feed.
func NewInvestment(r ModelRouter, feed MarketFeed) *Investment {
	return &Investment{router: r, feed: feed}
}

// ParsedQuery is the structured form of an investment question.
type ParsedQuery struct {
	Symbol     string `json:"symbol"`
	AssetClass string `json:"asset_class"`
	Timeframe  string `json:"timeframe"`
}

// Recommendation is the premium-tier synthesis. Every field has a defined
// default so incomplete model output never propagates as a broken report.
type Recommendation struct {
	Action       string   `json:"action"`
	Confidence   int      `json:"confidence"`
	PositionType string   `json:"position_type"`
	EntryPrice   float64  `json:"entry_price"`
	StopLoss     float64  `json:"stop_loss"`
	TargetPrice  float64  `json:"target_price"`
	RiskLevel    string   `json:"risk_level"`
	Reasoning    string   `json:"reasoning"`
	RiskWarning  string   `json:"risk_warning"`
	KeyFactors   []string `json:"key_factors"`
}

// InvestmentResult is the pipeline's output: the rendered report plus the
// structured fields the caller persists to memory.
type InvestmentResult struct {
	Symbol     string
	AssetClass string
	Action     string
	Confidence int
	Report     string
	Nodes      []NodeResult
}

var validActions = map[string]bool{"BUY": true, "SELL": true, "HOLD": true, "AVOID": true}

// Run executes the pipeline. Individual node failures degrade their own
// section; only a run where both the data feed and the synthesis model fail
// falls through to the no-data fallback.
func (p *Investment) Run(ctx context.Context, query string) (*InvestmentResult, error) {
	res := &InvestmentResult{}
	note := func(name string, status NodeStatus) {
		res.Nodes = append(res.Nodes, NodeResult{Name: name, Status: status})
		if status != StatusOK {
			log.Warn().Str("node", name).Str("status", string(status)).Msg("investment node degraded")
		}
	}

	parsed := p.parseQuery(ctx, query, note)
	res.Symbol = parsed.Symbol
	res.AssetClass = parsed.AssetClass

	snapshot := p.fetchSnapshot(ctx, parsed.Symbol, note)

	fundamentalsText := ""
	if parsed.AssetClass == "equity" || parsed.AssetClass == "fund" {
		fundamentalsText = p.interpretFundamentals(ctx, parsed.Symbol, note)
	}

	technicalText := p.interpretTechnicals(ctx, snapshot, note)

	mood, moodText := p.interpretMood(ctx, note)

	rec, recErr := p.recommend(ctx, query, parsed, snapshot, fundamentalsText, technicalText, moodText)
	if recErr != nil && snapshot == nil {
		// Nothing to report from: both live data and synthesis are gone.
		note("recommend", StatusUnavailable)
		report, err := p.noDataFallback(ctx, query)
		if err != nil {
			return nil, err
		}
		res.Action = "HOLD"
		res.Confidence = 0
		res.Report = report
		return res, nil
	}
	if recErr != nil {
		note("recommend", StatusDegraded)
		rec = defaultRecommendation(rec)
	} else {
		note("recommend", StatusOK)
	}

	res.Action = rec.Action
	res.Confidence = rec.Confidence
	res.Report = renderInvestmentReport(parsed, snapshot, fundamentalsText, technicalText, mood, moodText, rec)
	return res, nil
}

// parseQuery asks a light-tier model for {symbol, asset_class, timeframe}
// and falls back to a regex symbol guess when the output is not parseable.
func (p *Investment) parseQuery(ctx context.Context, query string, note func(string, NodeStatus)) ParsedQuery {
	prompt := fmt.Sprintf(`Extract the investment subject from this question. Respond with only a JSON object:
{"symbol": "<ticker>", "asset_class": "<equity|fund|crypto|commodity|forex>", "timeframe": "<short|medium|long>"}

Question: %s`, query)

	parsed := ParsedQuery{}
	out, err := p.router.InvokeTask(ctx, "parse", userMessages(prompt), "")
	if err == nil && decodeModelJSON(out, &parsed) && parsed.Symbol != "" {
		parsed.Symbol = strings.ToUpper(strings.TrimSpace(parsed.Symbol))
		note("parse", StatusOK)
	} else {
		parsed.Symbol = guessSymbol(query)
		note("parse", StatusDegraded)
	}
	if parsed.AssetClass == "" {
		parsed.AssetClass = "equity"
	}
	if parsed.Timeframe == "" {
		parsed.Timeframe = "medium"
	}
	return parsed
}

// tickerPattern matches standalone 1-5 letter uppercase tokens.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// tickerStopwords are uppercase tokens that look like tickers but are
// ordinary words in finance questions.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "THE": true, "AND": true, "OR": true, "FOR": true,
	"BUY": true, "SELL": true, "HOLD": true, "STOCK": true, "ETF": true,
	"USD": true, "IS": true, "IT": true, "TO": true, "OF": true, "IN": true,
}

// guessSymbol picks the first ticker-looking token from the raw query.
func guessSymbol(query string) string {
	for _, m := range tickerPattern.FindAllString(query, -1) {
		if !tickerStopwords[m] {
			return m
		}
	}
	return "SPY"
}

func (p *Investment) fetchSnapshot(ctx context.Context, symbol string, note func(string, NodeStatus)) *market.Snapshot {
	snap, err := p.feed.GetSnapshot(ctx, symbol)
	if err != nil {
		note("snapshot", StatusUnavailable)
		return nil
	}
	note("snapshot", StatusOK)
	return snap
}

func (p *Investment) interpretFundamentals(ctx context.Context, symbol string, note func(string, NodeStatus)) string {
	f, err := p.feed.GetFundamentals(ctx, symbol)
	if err != nil {
		note("fundamentals", StatusUnavailable)
		return ""
	}

	prompt := fmt.Sprintf(`Summarize the financial health of %s in 2-3 sentences for a retail investor.
Company: %s | Sector: %s | Market cap: %.0f | Trailing P/E: %.2f | EPS: %.2f | Revenue growth: %.1f%% | Profit margin: %.1f%%`,
		symbol, f.Name, f.Sector, f.MarketCap, f.TrailingPE, f.EPS, f.RevenueGrowth*100, f.ProfitMargin*100)

	out, err := p.router.InvokeTask(ctx, "interpret", userMessages(prompt), "")
	if err != nil {
		note("fundamentals", StatusDegraded)
		return fmt.Sprintf("%s (%s, %s): fundamentals retrieved but not interpreted.", f.Name, symbol, f.Sector)
	}
	note("fundamentals", StatusOK)
	return out
}

func (p *Investment) interpretTechnicals(ctx context.Context, snap *market.Snapshot, note func(string, NodeStatus)) string {
	if snap == nil {
		note("technical", StatusUnavailable)
		return ""
	}

	prompt := fmt.Sprintf(`Give a 2-3 sentence technical read of %s for a retail investor.
Price: %.2f | 24h change: %.2f%% | 52w range: %.2f-%.2f | SMA20: %.2f | SMA50: %.2f | Trend: %s`,
		snap.Symbol, snap.Price, snap.Change24h, snap.Low52w, snap.High52w, snap.SMA20, snap.SMA50, snap.Trend)

	out, err := p.router.InvokeTask(ctx, "interpret", userMessages(prompt), "")
	if err != nil {
		note("technical", StatusDegraded)
		return fmt.Sprintf("Price %.2f, %s on the 20/50 crossover.", snap.Price, snap.Trend)
	}
	note("technical", StatusOK)
	return out
}

func (p *Investment) interpretMood(ctx context.Context, note func(string, NodeStatus)) (*market.MarketMood, string) {
	mood := p.feed.GetMarketMood(ctx)
	if len(mood.Indices) == 0 {
		note("market_mood", StatusUnavailable)
		return mood, ""
	}

	var lines []string
	for _, idx := range mood.Indices {
		lines = append(lines, fmt.Sprintf("%s %+.2f%%", idx.Name, idx.Change24h))
	}
	prompt := fmt.Sprintf(`In 1-2 sentences, describe what today's broad market means for an individual stock decision.
Indices: %s. Overall: %s (%d advancing, %d declining).`,
		strings.Join(lines, ", "), mood.Sentiment, mood.Advancing, mood.Declining)

	out, err := p.router.InvokeTask(ctx, "sentiment", userMessages(prompt), "")
	if err != nil {
		note("market_mood", StatusDegraded)
		return mood, fmt.Sprintf("Broad market is %s (%d advancing, %d declining).", mood.Sentiment, mood.Advancing, mood.Declining)
	}
	note("market_mood", StatusOK)
	return mood, out
}

// recommend synthesizes everything into a structured recommendation at
// premium tier. A parseable-but-partial response is filled with defaults.
func (p *Investment) recommend(ctx context.Context, query string, parsed ParsedQuery, snap *market.Snapshot, fundamentals, technical, moodText string) (*Recommendation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\nSymbol: %s (%s, %s timeframe)\n", query, parsed.Symbol, parsed.AssetClass, parsed.Timeframe)
	if snap != nil {
		fmt.Fprintf(&sb, "Snapshot: price %.2f, 24h %+.2f%%, 52w %.2f-%.2f, SMA20 %.2f, SMA50 %.2f, trend %s\n",
			snap.Price, snap.Change24h, snap.Low52w, snap.High52w, snap.SMA20, snap.SMA50, snap.Trend)
	} else {
		sb.WriteString("Snapshot: unavailable\n")
	}
	if fundamentals != "" {
		fmt.Fprintf(&sb, "Fundamentals: %s\n", fundamentals)
	}
	if technical != "" {
		fmt.Fprintf(&sb, "Technicals: %s\n", technical)
	}
	if moodText != "" {
		fmt.Fprintf(&sb, "Market context: %s\n", moodText)
	}
	sb.WriteString(`
Respond with only a JSON object:
{"action": "BUY|SELL|HOLD|AVOID", "confidence": 0-100, "position_type": "long|short|none",
 "entry_price": 0, "stop_loss": 0, "target_price": 0, "risk_level": "low|medium|high",
 "reasoning": "...", "risk_warning": "...", "key_factors": ["..."]}`)

	out, err := p.router.InvokeTask(ctx, "recommend", userMessages(sb.String()), "")
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{}
	if !decodeModelJSON(out, rec) {
		log.Warn().Msg("recommendation output not parseable, using defaults")
		return defaultRecommendation(&Recommendation{Reasoning: strings.TrimSpace(out)}), nil
	}
	return defaultRecommendation(rec), nil
}

// defaultRecommendation fills every missing or invalid field.
func defaultRecommendation(rec *Recommendation) *Recommendation {
	if rec == nil {
		rec = &Recommendation{}
	}
	rec.Action = strings.ToUpper(strings.TrimSpace(rec.Action))
	if !validActions[rec.Action] {
		rec.Action = "HOLD"
	}
	if rec.Confidence <= 0 || rec.Confidence > 100 {
		rec.Confidence = 50
	}
	if rec.PositionType == "" {
		rec.PositionType = "none"
	}
	if rec.RiskLevel == "" {
		rec.RiskLevel = "medium"
	}
	if rec.Reasoning == "" {
		rec.Reasoning = "Insufficient signal for a directional call; defaulting to a neutral stance."
	}
	if rec.RiskWarning == "" {
		rec.RiskWarning = "All investments carry risk of loss. Position sizing and diversification matter more than any single call."
	}
	return rec
}

// noDataFallback produces an analysis without any live data, with the
// limitation disclosed in the report itself.
func (p *Investment) noDataFallback(ctx context.Context, query string) (string, error) {
	out, err := p.router.Invoke(ctx, router.TierPremium, userMessages(query),
		"You are a cautious investment analyst. You have no live market data; answer from general knowledge and say what you would verify first.")
	if err != nil {
		return "", fmt.Errorf("investment fallback: %w", err)
	}
	return out + "\n\n*Note: live market data was unavailable for this analysis; figures above are not current.*\n\n" + FinancialDisclaimer, nil
}
