// Package nlp provides the generative layer of Akari's intent pipeline.
//
// The layer has exactly two jobs, both invoked only after the deterministic
// rules in internal/akari/intent have given up:
//   - classify an utterance as one tool name or NONE (Classifier), and
//   - recover structured tool arguments from free text (Extractor).
//
// Invariants the rest of the system relies on:
//   - The model only proposes; every proposal is re-validated by the intent
//     gate, the argument schemas, and the dispatcher's allow-list.
//   - System prompts are rendered once and reused byte for byte, so the
//     serving side can keep its prompt prefix cache warm. Per-call text goes
//     in the user turn only.
//   - Each user message costs at most one inference call per job, guarded by
//     a per-user rate limit and a daily token budget.
//   - A failing model degrades the experience, never the data: callers fall
//     back to heuristics or to a plain conversational reply.
package nlp

import (
	"context"
	"errors"
)

// ErrRateLimit is returned when an inference call is refused because of
// rate limiting, either by the per-user client-side limiter or by the
// upstream API (HTTP 429).
var ErrRateLimit = errors.New("nlp: rate limit exceeded")

// ErrBudgetExceeded is returned when the sender has exhausted their daily
// token budget. No inference call is made.
var ErrBudgetExceeded = errors.New("nlp: daily token budget exhausted")

// ErrMalformedOutput is returned when the model produced text that cannot
// be interpreted for the job at hand (an unknown tool word, an unparseable
// function call). Callers fall back to their deterministic tier.
var ErrMalformedOutput = errors.New("nlp: malformed model output")

// ErrEmptyResponse is returned when the API answered successfully but with
// no usable content.
var ErrEmptyResponse = errors.New("nlp: empty model response")

// Request is one inference call. System carries the fixed instruction
// block; Prompt carries everything that varies per call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the raw model output plus accounting data.
type Response struct {
	// Text is the assistant message content, unprocessed.
	Text string
	// Usage holds token counts for budget enforcement. Nil when the
	// provider does not report usage (e.g. test stubs).
	Usage *TokenUsage
}

// TokenUsage carries the token counts reported by the upstream API for a
// single call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Model is the model name echoed back by the provider, when available.
	Model string
	// LatencyMS is the observed HTTP round-trip time in milliseconds.
	LatencyMS int64
}

// Provider performs a single text completion. Implementations must be safe
// for concurrent use and must honour ctx cancellation: an abandoned turn
// cancels its in-flight call.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// RateLimitMessage is surfaced to users who exceed the per-minute inference
// limit on conversational replies. Tool requests phrased directly are not
// affected because they never reach the model.
const RateLimitMessage = "⏳ I'm handling a lot of requests from you right now. Give me a moment and try again."

// DailyLimitMessage is surfaced to users who have exhausted their daily
// token budget.
const DailyLimitMessage = "I've hit my daily conversation limit. Directly phrased requests like \"save note ...\" or \"what is my ...\" still work."
