// Package environment layers process-environment overrides on top of
// file-sourced configuration values.
//
// Every Override helper takes the current value and returns the variable's
// value when it is set and parseable, otherwise the current value unchanged.
// A set-but-malformed variable is logged and ignored rather than failing
// startup: an operator typo in AKARI_LLM_RATE_LIMIT should not take the
// assistant offline.
package environment

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Override returns the named variable's value, or current when unset/empty.
func Override(name, current string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return current
}

// OverrideBool parses the named variable with strconv.ParseBool semantics
// ("1", "t", "true", "0", "false", ...).
func OverrideBool(name string, current bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring malformed environment variable", "name", name, "value", v)
		return current
	}
	return b
}

// OverrideInt parses the named variable as a decimal integer.
func OverrideInt(name string, current int) int {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed environment variable", "name", name, "value", v)
		return current
	}
	return n
}

// OverrideDuration parses the named variable with time.ParseDuration
// ("45s", "2m", "1h30m").
func OverrideDuration(name string, current time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring malformed environment variable", "name", name, "value", v)
		return current
	}
	return d
}

// OverrideList splits the named variable on commas, trimming whitespace and
// dropping empty elements. An all-empty value keeps current.
func OverrideList(name string, current []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return current
	}
	return out
}
