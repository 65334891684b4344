// Package memory implements the append-only JSON memory log: past
// conversations, investment analyses, and research reports, with keyword
// recall and age/count pruning.
package memory

import "time"

// Collection size caps. Appends trim the oldest records first.
const (
	MaxConversations = 1000
	MaxInvestments   = 500
	MaxResearch      = 200
)

// ConversationRecord captures one completed exchange.
type ConversationRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AgentLabel string    `json:"agent_label"`
	Query      string    `json:"query"`
	Summary    string    `json:"summary"`
	Tags       []string  `json:"tags,omitempty"`
}

// InvestmentRecord captures one completed investment analysis.
type InvestmentRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	AssetClass string    `json:"asset_class,omitempty"`
	Action     string    `json:"action,omitempty"`
	Confidence int       `json:"confidence,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

// ResearchRecord captures one completed market research run.
type ResearchRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Niche     string    `json:"niche"`
	Score     float64   `json:"score,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// ScoredConversation pairs a recalled record with its relevance score.
type ScoredConversation struct {
	Record ConversationRecord
	Score  float64
}
