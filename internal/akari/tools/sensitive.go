package tools

// sensitive.go decides which note content needs protecting. Akari's job is
// the opposite of refusing credentials: a personal assistant gets asked to
// remember wifi passwords and door codes, so sensitive content is accepted
// — but flagged, encrypted at rest, and redacted from the activity trail.

import (
	"regexp"
	"strings"
)

// credentialPatterns matches well-known credential formats. Each pattern is
// intentionally specific (vendor prefix + sufficient length) to keep the
// false-positive rate low.
var credentialPatterns = []*regexp.Regexp{
	// OpenAI API key — classic and project variants
	regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`),
	regexp.MustCompile(`\bsk-proj-[A-Za-z0-9_\-]{20,}\b`),
	// Anthropic
	regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}\b`),
	// AWS access key ID
	regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`),
	// GitHub tokens (personal, OAuth, fine-grained)
	regexp.MustCompile(`\bghp_[A-Za-z0-9]{36,}\b`),
	regexp.MustCompile(`\bgho_[A-Za-z0-9]{36,}\b`),
	regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,}\b`),
	// Slack tokens
	regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`),
	// Stripe secret / restricted / public keys
	regexp.MustCompile(`\b(?:sk|rk|pk)_(?:live|test)_[A-Za-z0-9]{20,}\b`),
	// Long high-entropy runs: base64 (≥48 chars, clears SHA-1 noise) and hex
	regexp.MustCompile(`[A-Za-z0-9+/]{48,}={0,2}`),
	regexp.MustCompile(`[0-9a-f]{48,}`),
}

// sensitiveHintWords are prose giveaways that the surrounding text is a
// credential even when the value itself is low-entropy ("the wifi password
// is hunter2").
var sensitiveHintWords = []string{
	"password", "passcode", "passphrase", "pin code", "pin is", "api key",
	"access token", "secret key", "private key", "credentials",
	"wifi key", "security code", "door code", "safe code", "2fa",
	"recovery code", "backup code", "seed phrase",
}

// LooksSensitive reports whether text appears to contain a credential or
// similar secret. Used to flag notes for at-rest protection and to scrub
// values from the activity trail.
func LooksSensitive(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range credentialPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, w := range sensitiveHintWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
