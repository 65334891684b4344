// Package pipeline implements the multi-node investment-analysis and
// market-research flows. Every node is independently fault-tolerant:
// a failed feed or model call degrades that node's section instead of
// aborting the run.
package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rclaybrook/homedeck/internal/llm"
	"github.com/rclaybrook/homedeck/internal/market"
	"github.com/rclaybrook/homedeck/internal/router"
)

// NodeStatus is the outcome of one pipeline node.
type NodeStatus string

const (
	StatusOK          NodeStatus = "ok"
	StatusDegraded    NodeStatus = "degraded"
	StatusUnavailable NodeStatus = "unavailable"
)

// NodeResult records how one node fared, for logging and report footnotes.
type NodeResult struct {
	Name   string     `json:"name"`
	Status NodeStatus `json:"status"`
}

// ModelRouter is the slice of the tiered router the pipelines call.
type ModelRouter interface {
	Invoke(ctx context.Context, tier router.Tier, messages []llm.Message, systemPrompt string) (string, error)
	InvokeTask(ctx context.Context, task string, messages []llm.Message, systemPrompt string) (string, error)
}

// MarketFeed is the slice of the market client the investment pipeline uses.
type MarketFeed interface {
	GetSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error)
	GetFundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error)
	GetMarketMood(ctx context.Context) *market.MarketMood
}

// userMessages wraps a single user prompt for a router call.
func userMessages(text string) []llm.Message {
	return []llm.Message{{Role: "user", Content: text}}
}

// extractJSON pulls the first top-level JSON object out of a model response,
// tolerating surrounding prose and code fences.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// decodeModelJSON extracts and unmarshals a JSON object from model output.
func decodeModelJSON(text string, out any) bool {
	raw, ok := extractJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// bulletLines splits model output into non-empty lines with list markers and
// numbering stripped. Used for pain points and key-factor lists.
func bulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		for len(line) > 1 && line[0] >= '0' && line[0] <= '9' {
			line = line[1:]
		}
		line = strings.TrimLeft(line, ".) \t")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
