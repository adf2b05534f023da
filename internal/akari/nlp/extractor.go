package nlp

import (
	"context"
	"fmt"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// extractMaxTokens bounds the single-line function call. Note content is
// user prose, so this is roomier than the classifier's budget.
const extractMaxTokens = 256

// Extractor recovers structured tool arguments from free text. Like the
// Classifier it is a fallback tier: the flow layer only calls it when
// heuristic extraction cannot recover a multi-field structure, and it makes
// exactly one inference call per invocation.
type Extractor struct {
	provider Provider
	limiter  *RateLimiter
	budget   *TokenBudget
	system   string
}

// NewExtractor wires an Extractor. limiter and budget may be nil to disable
// the respective guard. The system block is rendered once and reused
// verbatim for every call.
func NewExtractor(provider Provider, limiter *RateLimiter, budget *TokenBudget) *Extractor {
	return &Extractor{
		provider: provider,
		limiter:  limiter,
		budget:   budget,
		system:   ExtractorSystemPrompt(),
	}
}

// ExtractCall asks the model for a def call covering text. The returned
// call is grammatically valid and names the requested tool; argument-level
// validation against the schema stays with the caller. Any error means the
// caller should fall back to heuristic extraction.
func (e *Extractor) ExtractCall(ctx context.Context, userID string, def intent.Definition, text string) (*intent.FunctionCall, error) {
	if e.limiter != nil && !e.limiter.Allow(userID) {
		return nil, fmt.Errorf("extract for %s: %w", userID, ErrRateLimit)
	}
	if e.budget != nil && !e.budget.Allow(userID) {
		return nil, fmt.Errorf("extract for %s: %w", userID, ErrBudgetExceeded)
	}

	resp, err := e.provider.Generate(ctx, Request{
		System:      e.system,
		Prompt:      extractPrompt(def, text),
		MaxTokens:   extractMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if e.budget != nil && resp.Usage != nil {
		e.budget.RecordUsage(userID, resp.Usage.TotalTokens)
	}

	fc, err := ParseFunctionCall(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if fc.Name != string(def.Name) {
		return nil, fmt.Errorf("%w: model answered for %q, wanted %q", ErrMalformedOutput, fc.Name, def.Name)
	}
	return fc, nil
}

// extractPrompt renders the user turn for one extraction call.
func extractPrompt(def intent.Definition, text string) string {
	return "Tool: " + string(def.Name) + "\nMessage:\n" + text +
		"\n\nRespond with exactly one " + string(def.Name) + "(...) call using only its listed arguments."
}
