package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Agent labels the classifier resolves to.
const (
	AgentInvestment = "investment"
	AgentResearch   = "research"
	AgentGeneral    = "general"
)

// classifyTieBias is the label chosen when the keyword fallback scores
// investment and research vocabulary equally. Finance questions are the
// costlier ones to misroute, so ties go to the investment pipeline.
const classifyTieBias = AgentInvestment

var validLabels = map[string]bool{
	AgentInvestment: true,
	AgentResearch:   true,
	AgentGeneral:    true,
}

// greetingPattern matches pure greetings, which skip classification and go
// straight to the general handler.
var greetingPattern = regexp.MustCompile(`(?i)^\s*(?:hi|hello|hey|yo|howdy|sup|good\s+(?:morning|afternoon|evening)|what'?s\s+up)[\s!.,?]*$`)

func isGreeting(message string) bool {
	return greetingPattern.MatchString(message)
}

// classify resolves the agent label for a query. The model call runs at
// light tier; any failure or unrecognized answer falls through to the
// deterministic keyword classifier so transient backend trouble never
// silently routes everything to general.
func (o *Orchestrator) classify(ctx context.Context, message string) string {
	prompt := "Classify this request as exactly one word: investment (stock/asset analysis), research (market/niche research), or general (anything else).\n\nRequest: " + message

	out, err := o.router.InvokeTask(ctx, "classify", userMessages(prompt), "")
	if err == nil {
		label := strings.ToLower(strings.TrimSpace(out))
		for candidate := range validLabels {
			if strings.Contains(label, candidate) {
				return candidate
			}
		}
	}

	fallback := keywordClassify(message)
	log.Debug().Err(err).Str("label", fallback).Msg("model classification unusable, keyword fallback applied")
	return fallback
}

// tickerLike matches standalone uppercase tokens that look like stock
// symbols.
var tickerLike = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

var investmentVocab = []string{
	"stock", "invest", "buy", "sell", "hold", "ticker", "shares", "etf",
	"crypto", "bitcoin", "portfolio", "dividend", "earnings", "price target",
	"bull", "bear", "options",
}

var researchVocab = []string{
	"market research", "niche", "competitor", "competition", "business idea",
	"opportunity", "market size", "tam", "startup", "saas", "industry",
	"customer", "pain point", "demand",
}

// keywordClassify is the deterministic fallback: count vocabulary hits per
// label and pick the higher, with ties going to classifyTieBias.
func keywordClassify(message string) string {
	lower := strings.ToLower(message)

	invScore := 0
	for _, kw := range investmentVocab {
		if strings.Contains(lower, kw) {
			invScore++
		}
	}
	if tickerLike.MatchString(message) {
		invScore++
	}

	resScore := 0
	for _, kw := range researchVocab {
		if strings.Contains(lower, kw) {
			resScore++
		}
	}

	switch {
	case invScore == 0 && resScore == 0:
		return AgentGeneral
	case invScore > resScore:
		return AgentInvestment
	case resScore > invScore:
		return AgentResearch
	default:
		return classifyTieBias
	}
}
