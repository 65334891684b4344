package safety

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// RiskLevel grades how risky a query is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Violation records a single check finding.
type Violation struct {
	Check   string `json:"check"`
	Detail  string `json:"detail"`
	Blocked bool   `json:"blocked"`
}

// Flags carries the three independent post-processing flags set by the
// governor. The orchestrator applies the corresponding transforms to both
// the outbound query and the final response.
type Flags struct {
	SanitizeCredentials bool `json:"sanitize_credentials"`
	AddDisclaimer       bool `json:"add_disclaimer"`
	RedactPII           bool `json:"redact_pii"`
}

// Decision is the immutable result of a governance check.
type Decision struct {
	Approved   bool        `json:"approved"`
	Reason     string      `json:"reason"`
	RiskLevel  RiskLevel   `json:"risk_level"`
	Violations []Violation `json:"violations"`
	Warnings   []string    `json:"warnings"`
	Flags      Flags       `json:"flags"`
}

// Governor runs the fixed sequence of policy checks.
type Governor struct{}

// NewGovernor creates a governor with the built-in rule sets.
func NewGovernor() *Governor {
	return &Governor{}
}

// legalComplianceRules block immediately on first match. Each rule carries a
// specific user-facing reason.
var legalComplianceRules = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)insider\s+(?:trading|tip|information)`), "request involves insider trading"},
	{regexp.MustCompile(`(?i)(?:non[- ]?public|confidential)\s+(?:material\s+)?information.{0,40}(?:trade|trading|buy|sell|stock)`), "request involves trading on non-public information"},
	{regexp.MustCompile(`(?i)(?:launder|laundering)\s*(?:money|funds|cash)?`), "request involves money laundering"},
	{regexp.MustCompile(`(?i)guaranteed?\s+(?:returns?|profits?|gains?)`), "request seeks guaranteed investment returns, a hallmark of fraud"},
	{regexp.MustCompile(`(?i)(?:evade|evading|avoid\s+paying|dodge)\s+(?:taxes|tax)`), "request involves tax evasion"},
	{regexp.MustCompile(`(?i)pump\s+and\s+dump`), "request involves market manipulation"},
}

// exfiltrationRules catch attempts to pull data or reach sensitive paths.
var exfiltrationRules = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)(?:exfiltrate|leak|dump|export)\s+(?:all\s+)?(?:the\s+)?(?:data|database|credentials?|secrets?|users?)`), "request attempts data exfiltration"},
	{regexp.MustCompile(`(?i)send\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?(?:passwords?|credentials?|keys|tokens)`), "request attempts credential exfiltration"},
	{regexp.MustCompile(`(?i)(?:/etc/passwd|/etc/shadow|\.ssh/id_rsa|\.aws/credentials|\.env\b)`), "request references a sensitive system path"},
	{regexp.MustCompile(`(?i)(?:read|cat|show|print)\s+.{0,30}(?:private\s+key|keychain|wallet\.dat)`), "request attempts to read private key material"},
}

// disclaimerKeywords mark finance-adjacent queries that need the standard
// financial disclaimer appended.
var disclaimerKeywords = []string{
	"invest", "stock", "etf", "crypto", "bitcoin", "portfolio",
	"trading", "trade", "buy", "sell", "shares", "bond", "options",
	"financial advice", "retirement", "401k",
}

// financeAdjacentLabels are the agent labels whose output carries financial
// weight and is eligible for the disclaimer.
var financeAdjacentLabels = map[string]bool{
	"investment": true,
	"research":   true,
}

// Check runs the six governance checks in fixed order and returns the
// decision. Blocking checks short-circuit: once one fires, later checks are
// skipped. Non-blocking findings accumulate as warnings regardless.
func (g *Governor) Check(query, agentLabel string) *Decision {
	d := &Decision{
		Approved:  true,
		Reason:    "approved",
		RiskLevel: RiskLow,
	}

	// 1. PII scan: warn and flag redaction, never block.
	if pii := DetectPII(query); len(pii) > 0 {
		d.Flags.RedactPII = true
		d.RiskLevel = RiskMedium
		d.Warnings = append(d.Warnings, "query contains personal data ("+strings.Join(pii, ", ")+"); it will be redacted")
		d.Violations = append(d.Violations, Violation{Check: "pii", Detail: strings.Join(pii, ", "), Blocked: false})
	}

	// 2. Legal compliance: block on first match.
	for _, rule := range legalComplianceRules {
		if rule.re.MatchString(query) {
			return g.block(d, "legal_compliance", rule.reason)
		}
	}

	// 3. Data exfiltration and dangerous paths: block.
	for _, rule := range exfiltrationRules {
		if rule.re.MatchString(query) {
			return g.block(d, "data_exfiltration", rule.reason)
		}
	}

	// 4. Credential detection: flag sanitization, do not block.
	if creds := DetectCredentials(query); len(creds) > 0 {
		d.Flags.SanitizeCredentials = true
		if d.RiskLevel == RiskLow {
			d.RiskLevel = RiskMedium
		}
		d.Warnings = append(d.Warnings, "query contains credential-like strings; they will be redacted")
		for _, c := range creds {
			d.Violations = append(d.Violations, Violation{Check: "credentials", Detail: c.Type, Blocked: false})
		}
	}

	// 5. Prompt injection: block.
	if inj := DetectInjection(query); len(inj) > 0 {
		return g.block(d, "prompt_injection", "request contains prompt-injection patterns")
	}

	// 6. Disclaimer eligibility: flag only, never block.
	if financeAdjacentLabels[agentLabel] {
		lower := strings.ToLower(query)
		for _, kw := range disclaimerKeywords {
			if strings.Contains(lower, kw) {
				d.Flags.AddDisclaimer = true
				break
			}
		}
	}

	return d
}

// block finalizes a blocking decision, keeping warnings gathered so far.
func (g *Governor) block(d *Decision, check, reason string) *Decision {
	d.Approved = false
	d.Reason = reason
	d.RiskLevel = RiskHigh
	d.Violations = append(d.Violations, Violation{Check: check, Detail: reason, Blocked: true})
	log.Warn().Str("check", check).Str("reason", reason).Msg("query blocked by governor")
	return d
}
