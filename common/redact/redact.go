// Package redact strips secret material from text and parameter maps before
// they reach a log line, the activity ledger, or a Matrix room.
//
// Redaction here is a backstop, not a guarantee: it works on string
// representations and on key-name heuristics, and it relies on call sites
// passing the secrets they hold. Keeping secrets out of log statements in
// the first place is still the rule.
package redact

import (
	"sort"
	"strings"
)

// Placeholder is what every redacted value is replaced with.
const Placeholder = "[REDACTED]"

// minSecretLen guards against blanking common short substrings ("ok", "a1").
const minSecretLen = 4

// Values replaces each occurrence of every secret in s with Placeholder.
// Longer secrets are replaced first so that a secret containing another
// secret as a substring redacts cleanly.
func Values(s string, secrets ...string) string {
	if len(secrets) == 0 {
		return s
	}
	ordered := make([]string, 0, len(secrets))
	for _, sec := range secrets {
		if len(sec) >= minSecretLen {
			ordered = append(ordered, sec)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	for _, sec := range ordered {
		s = strings.ReplaceAll(s, sec, Placeholder)
	}
	return s
}

// Params returns a copy of params with the value blanked for every key whose
// name suggests it carries a credential. Values themselves are not
// inspected; content-based screening is the caller's job.
func Params(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" && secretKey(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = v
	}
	return out
}

var secretKeyWords = []string{
	"password", "passwd", "token", "secret", "key", "credential", "auth", "apikey", "pin",
}

func secretKey(k string) bool {
	lower := strings.ToLower(k)
	for _, w := range secretKeyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
