package nlp

import (
	"sync"
	"time"
)

// DefaultTokenBudget is the maximum number of model tokens allowed per user
// per UTC day when no explicit budget is configured. Classification answers
// are a handful of tokens and extractions a few hundred, so 50 000 covers a
// full day of heavy personal use.
const DefaultTokenBudget = 50_000

// TokenBudget enforces a per-user daily token budget for inference calls.
// Call Allow before issuing a call, then RecordUsage with the reported
// total; counters roll over at midnight UTC. Safe for concurrent use.
type TokenBudget struct {
	mu     sync.Mutex
	budget int
	days   map[string]usageDay
	now    func() time.Time
}

// usageDay is one user's consumption within a single UTC calendar day.
// A stale day field means the counter has implicitly rolled over to zero.
type usageDay struct {
	day  string // UTC date, time.DateOnly
	used int
}

// NewTokenBudget returns a TokenBudget that allows at most dailyBudget
// tokens per user per UTC day. dailyBudget ≤ 0 selects DefaultTokenBudget.
func NewTokenBudget(dailyBudget int) *TokenBudget {
	if dailyBudget <= 0 {
		dailyBudget = DefaultTokenBudget
	}
	return &TokenBudget{
		budget: dailyBudget,
		days:   make(map[string]usageDay),
		now:    time.Now,
	}
}

// Budget returns the configured daily token limit per user.
func (tb *TokenBudget) Budget() int {
	return tb.budget
}

// Allow reports whether userID still has budget left today. It does not
// consume anything; call RecordUsage with actual usage afterwards.
func (tb *TokenBudget) Allow(userID string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.usedToday(userID) < tb.budget
}

// RecordUsage adds tokens to userID's running daily total.
func (tb *TokenBudget) RecordUsage(userID string, tokens int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.days[userID] = usageDay{
		day:  tb.today(),
		used: tb.usedToday(userID) + tokens,
	}
}

// Remaining returns the number of tokens userID may still consume today,
// or 0 when the budget is exhausted.
func (tb *TokenBudget) Remaining(userID string) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if rem := tb.budget - tb.usedToday(userID); rem > 0 {
		return rem
	}
	return 0
}

// Used returns the total tokens userID has consumed today.
func (tb *TokenBudget) Used(userID string) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.usedToday(userID)
}

func (tb *TokenBudget) today() string {
	return tb.now().UTC().Format(time.DateOnly)
}

// usedToday must be called with tb.mu held.
func (tb *TokenBudget) usedToday(userID string) int {
	u, ok := tb.days[userID]
	if !ok || u.day != tb.today() {
		return 0
	}
	return u.used
}
