package nlp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// classifyMaxTokens bounds the one-word answer. Generous enough for any
// tool name plus stray punctuation, tight enough that a rambling model is
// cut off instead of billed.
const classifyMaxTokens = 8

// Classifier asks the model to name the tool for an utterance. It is the
// fallback tier: the orchestrator only calls it when the rule cascade found
// nothing and the text is not a greeting, and it makes exactly one
// inference call per invocation.
type Classifier struct {
	provider Provider
	limiter  *RateLimiter
	budget   *TokenBudget
	system   string
}

// NewClassifier wires a Classifier. limiter and budget may be nil to
// disable the respective guard. The system block is rendered here, once,
// and reused verbatim for every call.
func NewClassifier(provider Provider, limiter *RateLimiter, budget *TokenBudget) *Classifier {
	return &Classifier{
		provider: provider,
		limiter:  limiter,
		budget:   budget,
		system:   ClassifierSystemPrompt(),
	}
}

// ClassifyIntent maps text to a tool intent using the model. A NONE answer
// returns ("", nil): that is a successful classification of "no tool", not
// an error. Errors mean the answer is unusable (guard refused, transport
// failed, output unparseable); callers degrade to a conversational reply
// and never surface these to the user.
func (c *Classifier) ClassifyIntent(ctx context.Context, userID, text string) (intent.Intent, error) {
	if c.limiter != nil && !c.limiter.Allow(userID) {
		return "", fmt.Errorf("classify for %s: %w", userID, ErrRateLimit)
	}
	if c.budget != nil && !c.budget.Allow(userID) {
		return "", fmt.Errorf("classify for %s: %w", userID, ErrBudgetExceeded)
	}

	resp, err := c.provider.Generate(ctx, Request{
		System:      c.system,
		Prompt:      classifyPrompt(text),
		MaxTokens:   classifyMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	if c.budget != nil && resp.Usage != nil {
		c.budget.RecordUsage(userID, resp.Usage.TotalTokens)
	}

	return parseClassifierAnswer(resp.Text)
}

// classifyPrompt renders the user turn. The task restatement lives here so
// the system block never changes.
func classifyPrompt(text string) string {
	return "Message:\n" + text + "\n\nWhich tool handles this message? Answer with one word from the list, or NONE."
}

// parseClassifierAnswer maps the model's answer to an intent. Matching is
// forgiving in the same order a human would read the answer: the whole
// text, then its first word, then its last, which recovers contract drift
// like "save_note." or "I would pick web_search".
func parseClassifierAnswer(answer string) (intent.Intent, error) {
	candidates := []string{answer}
	if fields := strings.Fields(answer); len(fields) > 1 {
		candidates = append(candidates, fields[0], fields[len(fields)-1])
	}
	for _, cand := range candidates {
		if isNoneWord(cand) {
			return "", nil
		}
		if it, ok := intent.ParseWord(cand); ok {
			return it, nil
		}
	}
	return "", fmt.Errorf("%w: %.80q", ErrMalformedOutput, answer)
}

func isNoneWord(s string) bool {
	w := strings.ToLower(strings.TrimSpace(s))
	w = strings.Trim(w, "\"'`*.:,! \t\r\n")
	return w == "none"
}
