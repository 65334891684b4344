// Package orchestrator supervises a request through the
// classify→govern→dispatch→done stages, with blocked as the absorbing state
// for governance failures.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rclaybrook/homedeck/internal/llm"
	"github.com/rclaybrook/homedeck/internal/memory"
	"github.com/rclaybrook/homedeck/internal/pipeline"
	"github.com/rclaybrook/homedeck/internal/router"
	"github.com/rclaybrook/homedeck/internal/safety"
)

// Stage names the request lifecycle states.
type Stage string

const (
	StageClassify Stage = "classify"
	StageGovern   Stage = "govern"
	StageDispatch Stage = "dispatch"
	StageDone     Stage = "done"
	StageBlocked  Stage = "blocked"
)

// ModelRouter is the slice of the tiered router the orchestrator calls.
type ModelRouter interface {
	Invoke(ctx context.Context, tier router.Tier, messages []llm.Message, systemPrompt string) (string, error)
	InvokeTask(ctx context.Context, task string, messages []llm.Message, systemPrompt string) (string, error)
}

type investmentRunner interface {
	Run(ctx context.Context, query string) (*pipeline.InvestmentResult, error)
}

type researchRunner interface {
	Run(ctx context.Context, query string) (*pipeline.ResearchResult, error)
}

type memoryStore interface {
	SaveConversation(rec memory.ConversationRecord) error
	SaveInvestment(rec memory.InvestmentRecord) error
	SaveResearch(rec memory.ResearchRecord) error
	RecallRelevant(query string, n int) ([]memory.ConversationRecord, error)
}

// Request is one inbound query.
type Request struct {
	Message         string
	History         []llm.Message
	ForceAgentLabel string
	QuickChat       bool
	ThreadID        string
}

// Result is the orchestrator's reply. Reply is always non-empty.
type Result struct {
	Reply      string
	AgentLabel string
	Stage      Stage
	ThreadID   string
	Governance *safety.Decision
}

// Orchestrator wires the governor, router, pipelines and memory together.
type Orchestrator struct {
	router     ModelRouter
	governor   *safety.Governor
	investment investmentRunner
	research   researchRunner
	memory     memoryStore
	userName   string
	recallN    int
}

// New creates an orchestrator over its collaborators.
func New(r ModelRouter, gov *safety.Governor, inv investmentRunner, res researchRunner, mem memoryStore) *Orchestrator {
	return &Orchestrator{router: r, governor: gov, investment: inv, research: res, memory: mem, recallN: 3}
}

// SetUserName personalizes the general-chat prompt.
func (o *Orchestrator) SetUserName(name string) {
	o.userName = name
}

// SetMemoryRecall overrides how many past conversations general chat folds
// into its prompt.
func (o *Orchestrator) SetMemoryRecall(n int) {
	if n > 0 {
		o.recallN = n
	}
}

// systemPrompts maps each agent label to its personality. Pure lookup,
// no construction at request time.
var systemPrompts = map[string]string{
	AgentGeneral:    "You are HomeDeck, a concise personal assistant running on the user's own hardware. Be direct and practical.",
	AgentInvestment: "You are HomeDeck's investment analyst. Be factual, cite the data you were given, and never promise returns.",
	AgentResearch:   "You are HomeDeck's market researcher. Be structured and candid about uncertainty.",
}

const fallbackReply = "I wasn't able to produce an answer for that. Please try rephrasing your question."

// Handle runs one request through the full state machine. It never returns
// an error; every failure mode resolves to a user-readable reply.
func (o *Orchestrator) Handle(ctx context.Context, req Request) *Result {
	res := &Result{ThreadID: req.ThreadID, Stage: StageClassify}
	if res.ThreadID == "" {
		res.ThreadID = uuid.New().String()
	}

	// Resolve the label. A forced label bypasses classification but
	// nothing else; greetings skip the model call entirely.
	switch {
	case validLabels[req.ForceAgentLabel]:
		res.AgentLabel = req.ForceAgentLabel
	case isGreeting(req.Message):
		res.AgentLabel = AgentGeneral
	default:
		res.AgentLabel = o.classify(ctx, req.Message)
	}

	// Governance always runs, greeting or not.
	res.Stage = StageGovern
	decision := o.governor.Check(req.Message, res.AgentLabel)
	res.Governance = decision
	if !decision.Approved {
		res.Stage = StageBlocked
		res.Reply = decision.Reason
		log.Info().Str("thread", res.ThreadID).Str("reason", decision.Reason).Msg("request blocked")
		return res
	}

	// Apply redaction flags to the query before any model sees it.
	query := req.Message
	if decision.Flags.SanitizeCredentials {
		query = safety.Sanitize(query)
	}
	if decision.Flags.RedactPII {
		query = safety.RedactPII(query)
	}

	res.Stage = StageDispatch
	reply, err := o.dispatch(ctx, res.AgentLabel, query, req)
	if err != nil {
		reply = friendlyFailure(err)
	}

	res.Stage = StageDone
	res.Reply = o.finalize(reply, decision)

	if err == nil {
		o.remember(res.AgentLabel, query, res.Reply)
	}
	return res
}

// dispatch routes the approved query to its pipeline or to a single general
// call. QuickChat skips the pipelines regardless of label.
func (o *Orchestrator) dispatch(ctx context.Context, label, query string, req Request) (string, error) {
	if req.QuickChat {
		label = AgentGeneral
	}

	switch label {
	case AgentInvestment:
		result, err := o.investment.Run(ctx, query)
		if err != nil {
			return "", err
		}
		o.rememberInvestment(result)
		return result.Report, nil
	case AgentResearch:
		result, err := o.research.Run(ctx, query)
		if err != nil {
			return "", err
		}
		o.rememberResearch(result)
		return result.Report, nil
	default:
		return o.generalChat(ctx, query, req.History)
	}
}

// generalChat answers at standard tier with relevant past conversations
// folded into the system prompt.
func (o *Orchestrator) generalChat(ctx context.Context, query string, history []llm.Message) (string, error) {
	system := systemPrompts[AgentGeneral]
	if o.userName != "" {
		system += " The user's name is " + o.userName + "."
	}
	if recalled, err := o.memory.RecallRelevant(query, o.recallN); err == nil && len(recalled) > 0 {
		var lines []string
		for _, rec := range recalled {
			summary := rec.Summary
			if summary == "" {
				summary = rec.Query
			}
			lines = append(lines, "- "+summary)
		}
		system += "\n\nRelevant past conversations:\n" + strings.Join(lines, "\n")
	}

	messages := append(append([]llm.Message{}, history...), llm.Message{Role: "user", Content: query})
	return o.router.InvokeTask(ctx, "chat", messages, system)
}

// finalize applies the governance flags to the reply and guarantees a
// non-empty result.
func (o *Orchestrator) finalize(reply string, decision *safety.Decision) string {
	if decision.Flags.SanitizeCredentials {
		reply = safety.Sanitize(reply)
	}
	if decision.Flags.RedactPII {
		reply = safety.RedactPII(reply)
	}
	if decision.Flags.AddDisclaimer && !strings.Contains(reply, pipeline.FinancialDisclaimer) {
		reply = strings.TrimSpace(reply) + "\n\n" + pipeline.FinancialDisclaimer
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply
	}
	return reply
}

// friendlyFailure converts the only error the router lets escape into a
// non-technical message, distinguishing connectivity trouble from a generic
// failure. Internal error text never reaches the user.
func friendlyFailure(err error) string {
	if errors.Is(err, router.ErrAllTiersExhausted) && router.IsTimeout(err) {
		return "The model backends are not responding right now. Check that your local model server is running, then try again."
	}
	if errors.Is(err, router.ErrAllTiersExhausted) {
		return "All model backends failed to answer. Please try again in a moment."
	}
	log.Error().Err(err).Msg("unexpected dispatch failure")
	return fallbackReply
}

// remember persists the exchange. Memory failures are logged, never
// surfaced to the user.
func (o *Orchestrator) remember(label, query, reply string) {
	rec := memory.ConversationRecord{
		AgentLabel: label,
		Query:      query,
		Summary:    truncate(reply, 200),
	}
	if err := o.memory.SaveConversation(rec); err != nil {
		log.Warn().Err(err).Msg("conversation memory write failed")
	}
}

func (o *Orchestrator) rememberInvestment(result *pipeline.InvestmentResult) {
	rec := memory.InvestmentRecord{
		Symbol:     result.Symbol,
		AssetClass: result.AssetClass,
		Action:     result.Action,
		Confidence: result.Confidence,
		Summary:    truncate(result.Report, 200),
	}
	if err := o.memory.SaveInvestment(rec); err != nil {
		log.Warn().Err(err).Msg("investment memory write failed")
	}
}

func (o *Orchestrator) rememberResearch(result *pipeline.ResearchResult) {
	rec := memory.ResearchRecord{
		Niche:   result.Niche,
		Score:   result.Score,
		Tier:    result.Tier,
		Summary: truncate(result.Report, 200),
	}
	if err := o.memory.SaveResearch(rec); err != nil {
		log.Warn().Err(err).Msg("research memory write failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func userMessages(text string) []llm.Message {
	return []llm.Message{{Role: "user", Content: text}}
}
