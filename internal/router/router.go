package router

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rclaybrook/homedeck/internal/llm"
)

// Config holds router settings. Model overrides replace the default
// tier mapping for whichever tiers are set.
type Config struct {
	// LightModel, StandardModel, PremiumModel override the default
	// tier-to-model mapping.
	LightModel    string
	StandardModel string
	PremiumModel  string
	// MaxTokens is the default response budget per call.
	MaxTokens int
}

// Router invokes model backends by tier with escalation on failure.
type Router struct {
	providers map[string]llm.Provider
	models    map[Tier]ModelRef
	maxTokens int
	mixed     bool // more than one backend configured
}

// New creates a router over the available providers. Providers that report
// unavailable are excluded from the mapping. At least one provider must be
// available.
func New(providers map[string]llm.Provider, cfg Config) (*Router, error) {
	available := make(map[string]llm.Provider)
	for name, p := range providers {
		if p.Available() {
			available[name] = p
		}
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("no model backends available")
	}

	r := &Router{
		providers: available,
		models:    defaultModels(available),
		maxTokens: cfg.MaxTokens,
		mixed:     len(available) > 1,
	}
	if r.maxTokens == 0 {
		r.maxTokens = 2048
	}

	// Apply configured overrides; the provider is inferred from the
	// model name.
	overrides := map[Tier]string{
		TierLight:    cfg.LightModel,
		TierStandard: cfg.StandardModel,
		TierPremium:  cfg.PremiumModel,
	}
	for tier, model := range overrides {
		if model == "" {
			continue
		}
		provider := detectProvider(model)
		if _, ok := available[provider]; !ok {
			log.Warn().Str("model", model).Str("provider", provider).Msg("configured model's backend unavailable, keeping default")
			continue
		}
		r.models[tier] = ModelRef{Provider: provider, Model: model}
	}

	for _, tier := range tierOrder {
		ref := r.models[tier]
		log.Info().Str("tier", string(tier)).Str("provider", ref.Provider).Str("model", ref.Model).Msg("router tier mapped")
	}
	return r, nil
}

// defaultModels builds the static tier mapping from whichever backends are
// configured. With both backends, light and standard run on the cheaper
// local backend and premium on the capable cloud one; a single backend
// serves every tier.
func defaultModels(available map[string]llm.Provider) map[Tier]ModelRef {
	_, hasOllama := available["ollama"]
	_, hasAnthropic := available["anthropic"]

	switch {
	case hasOllama && hasAnthropic:
		return map[Tier]ModelRef{
			TierLight:    {Provider: "ollama", Model: "llama3.2:3b"},
			TierStandard: {Provider: "ollama", Model: "llama3.1:8b"},
			TierPremium:  {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
		}
	case hasAnthropic:
		return map[Tier]ModelRef{
			TierLight:    {Provider: "anthropic", Model: "claude-3-5-haiku-20241022"},
			TierStandard: {Provider: "anthropic", Model: "claude-3-5-haiku-20241022"},
			TierPremium:  {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
		}
	default:
		// Whatever single backend is configured serves every tier.
		var name string
		for n := range available {
			name = n
		}
		return map[Tier]ModelRef{
			TierLight:    {Provider: name, Model: "llama3.2:3b"},
			TierStandard: {Provider: name, Model: "llama3.1:8b"},
			TierPremium:  {Provider: name, Model: "llama3.1:8b"},
		}
	}
}

// detectProvider infers the backend from a model name.
func detectProvider(model string) string {
	if strings.Contains(strings.ToLower(model), "claude") {
		return "anthropic"
	}
	return "ollama"
}

// InvokeTask routes a sub-task through its statically assigned tier.
func (r *Router) InvokeTask(ctx context.Context, task string, messages []llm.Message, systemPrompt string) (string, error) {
	return r.Invoke(ctx, TierForTask(task), messages, systemPrompt)
}

// Invoke calls the model mapped to the requested tier, escalating through
// the chain light → standard → premium on failure. In mixed-backend
// configurations a final same-tier swap to the alternate backend is tried
// before giving up. Returns ErrAllTiersExhausted only after every attempt
// failed.
func (r *Router) Invoke(ctx context.Context, tier Tier, messages []llm.Message, systemPrompt string) (string, error) {
	var lastErr error
	var tried []string

	for _, t := range escalationChain(tier) {
		ref := r.models[t]
		text, err := r.call(ctx, ref, messages, systemPrompt)
		if err == nil {
			log.Debug().Str("tier", string(t)).Str("model", ref.Model).Float64("est_cost", tierCost[t]).Msg("model call succeeded")
			return text, nil
		}
		lastErr = err
		tried = append(tried, string(t)+":"+ref.Model)
		log.Warn().Str("tier", string(t)).Str("model", ref.Model).Err(err).Msg("model call failed, escalating")
	}

	// Same-tier swap: retry the originally requested tier on the other
	// backend before declaring exhaustion.
	if r.mixed {
		if alt, ok := r.alternateRef(tier); ok {
			text, err := r.call(ctx, alt, messages, systemPrompt)
			if err == nil {
				log.Info().Str("provider", alt.Provider).Str("model", alt.Model).Msg("alternate backend rescued request")
				return text, nil
			}
			lastErr = err
			tried = append(tried, "swap:"+alt.Model)
		}
	}

	return "", fmt.Errorf("%w (tried %s): %v", ErrAllTiersExhausted, strings.Join(tried, ", "), lastErr)
}

// alternateRef returns the same-tier model on a backend other than the one
// the tier is mapped to.
func (r *Router) alternateRef(tier Tier) (ModelRef, bool) {
	current := r.models[tier]
	for name := range r.providers {
		if name == current.Provider {
			continue
		}
		alt := defaultModels(map[string]llm.Provider{name: r.providers[name]})
		return alt[tier], true
	}
	return ModelRef{}, false
}

// call performs one model invocation and treats an empty response as a
// failure so escalation can recover it.
func (r *Router) call(ctx context.Context, ref ModelRef, messages []llm.Message, systemPrompt string) (string, error) {
	provider, ok := r.providers[ref.Provider]
	if !ok {
		return "", fmt.Errorf("provider %s not configured", ref.Provider)
	}

	resp, err := provider.Chat(ctx, &llm.ChatRequest{
		Model:        ref.Model,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		MaxTokens:    r.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("empty response from %s", ref.Model)
	}
	return resp.Content, nil
}

// IsTimeout reports whether an error chain looks like a timeout or
// connectivity failure rather than a backend rejection. Used to pick the
// right user-facing message when every tier is exhausted.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused")
}

// Status returns the current tier mapping and backends for debugging.
func (r *Router) Status() map[string]any {
	backends := make([]string, 0, len(r.providers))
	for name := range r.providers {
		backends = append(backends, name)
	}

	tiers := make(map[string]any, len(r.models))
	for tier, ref := range r.models {
		tiers[string(tier)] = map[string]any{
			"provider": ref.Provider,
			"model":    ref.Model,
			"est_cost": tierCost[tier],
		}
	}

	return map[string]any{
		"backends": backends,
		"tiers":    tiers,
		"mixed":    r.mixed,
	}
}
