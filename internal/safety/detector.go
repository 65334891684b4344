// Package safety provides the policy gate every query passes before any
// pipeline executes: credential and prompt-injection detection, PII and
// compliance scanning, and the governance decision that drives
// post-processing of model output.
package safety

import (
	"regexp"
	"sort"
	"strings"
)

// RedactionMarker replaces every credential match in sanitized text.
const RedactionMarker = "[REDACTED]"

// CredentialMatch describes one detected secret.
type CredentialMatch struct {
	Type  string // credential family, e.g. "bearer_token"
	Start int    // byte offset of the match
	End   int    // byte offset one past the match
}

// InjectionMatch describes one detected prompt-injection attempt.
type InjectionMatch struct {
	Pattern string
	Start   int
	End     int
}

// credentialPatterns match each secret family independently. Order matters
// only for reporting; overlapping matches are all recorded.
var credentialPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{20,}\b`)},
	{"connection_string", regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s'"]+`)},
	{"generic_secret", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token|passwd|password)\s*[=:]\s*['"]?[A-Za-z0-9\-._~+/]{8,}['"]?`)},
}

// injectionPatterns are heuristics for common prompt-injection phrasings.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+(?:instructions?|prompts?|rules?|directions?)`),
	regexp.MustCompile(`(?i)disregard\s+(?:all\s+)?(?:previous|prior|above)\s+(?:instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(?:all\s+)?(?:previous|prior|above|your)\s+(?:instructions?|prompts?|rules?|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|my)\s+`),
	regexp.MustCompile(`(?i)new\s+instructions?:\s*`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)pretend\s+you\s+(?:are|have)\s+no\s+(?:restrictions?|rules?|guidelines?)`),
	regexp.MustCompile(`(?i)reveal\s+(?:your|the)\s+(?:system\s+)?(?:prompt|instructions?)`),
	regexp.MustCompile(`(?i)repeat\s+(?:your|the)\s+(?:system\s+)?(?:prompt|instructions?)\s+verbatim`),
}

// DetectCredentials scans text for secrets and returns every match.
func DetectCredentials(text string) []CredentialMatch {
	var matches []CredentialMatch
	for _, p := range credentialPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, CredentialMatch{
				Type:  p.name,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	return matches
}

// Sanitize replaces every detected credential with the redaction marker.
// The entire matched span is replaced. Replacements are applied from the
// highest start offset to the lowest so earlier replacements never shift
// offsets of matches not yet applied.
func Sanitize(text string) string {
	matches := DetectCredentials(text)
	if len(matches) == 0 {
		return text
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start > matches[j].Start
	})

	out := text
	lastStart := len(out) + 1
	for _, m := range matches {
		// Skip matches swallowed by an already-applied overlapping span.
		if m.End > lastStart {
			continue
		}
		out = out[:m.Start] + RedactionMarker + out[m.End:]
		lastStart = m.Start
	}
	return out
}

// DetectInjection scans text for prompt-injection attempts.
func DetectInjection(text string) []InjectionMatch {
	var matches []InjectionMatch
	for _, re := range injectionPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			matches = append(matches, InjectionMatch{
				Pattern: re.String(),
				Start:   loc[0],
				End:     loc[1],
			})
		}
	}
	return matches
}

// piiPatterns detect personal data that should be redacted, never blocked.
var piiPatterns = map[string]*regexp.Regexp{
	"email":       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card": regexp.MustCompile(`\b(?:\d{4}[-\s]){3}\d{4}\b`),
	"phone":       regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
}

// DetectPII returns the names of PII pattern families present in text.
func DetectPII(text string) []string {
	var found []string
	for _, name := range []string{"email", "ssn", "credit_card", "phone"} {
		if piiPatterns[name].MatchString(text) {
			found = append(found, name)
		}
	}
	return found
}

// RedactPII replaces detected PII spans with a family-specific marker.
func RedactPII(text string) string {
	out := text
	for _, name := range []string{"email", "ssn", "credit_card", "phone"} {
		marker := "[" + strings.ToUpper(name) + " REDACTED]"
		out = piiPatterns[name].ReplaceAllString(out, marker)
	}
	return out
}
