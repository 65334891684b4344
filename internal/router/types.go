// Package router maps analysis sub-tasks to cost tiers and invokes the
// configured model backends, escalating tiers on failure.
package router

import "errors"

// Tier is a cost/capability class of model backend.
type Tier string

const (
	TierLight    Tier = "light"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// tierOrder is the fixed escalation chain tried on repeated failure.
var tierOrder = []Tier{TierLight, TierStandard, TierPremium}

// taskTiers statically assigns every internal sub-task to a tier.
// The mapping never changes at runtime; escalation happens at call time.
var taskTiers = map[string]Tier{
	"classify":  TierLight,
	"parse":     TierLight,
	"identify":  TierLight,
	"interpret": TierStandard,
	"summarize": TierStandard,
	"sentiment": TierStandard,
	"analyze":   TierStandard,
	"chat":      TierStandard,
	"decide":    TierPremium,
	"recommend": TierPremium,
}

// tierCost is the approximate per-call cost in USD, used for the status
// endpoint and logging only.
var tierCost = map[Tier]float64{
	TierLight:    0.001,
	TierStandard: 0.01,
	TierPremium:  0.05,
}

// TierForTask returns the configured tier for a sub-task, defaulting to
// standard for unknown tasks.
func TierForTask(task string) Tier {
	if t, ok := taskTiers[task]; ok {
		return t
	}
	return TierStandard
}

// escalationChain returns the tiers to try, starting from the requested
// tier and moving up.
func escalationChain(from Tier) []Tier {
	for i, t := range tierOrder {
		if t == from {
			return tierOrder[i:]
		}
	}
	return tierOrder
}

// ErrAllTiersExhausted reports that every backend/tier combination failed.
// This is the only upstream failure mode that propagates out of the router.
var ErrAllTiersExhausted = errors.New("all model tiers exhausted")

// ModelRef binds a tier to a concrete backend and model.
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
