// Package tokens provides the shared token estimator and context budget.
package tokens

import "unicode/utf8"

// Estimate returns the approximate token count for a string, computed as
// ceil(characters/4). Counting runes rather than bytes keeps multibyte
// scripts (Tamil, Hindi, Japanese) from being over-charged. Every component
// that needs a token figure must use this function so budgets stay
// consistent across the turn.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	return (utf8.RuneCountInString(s) + 3) / 4
}

// Budget splits the context window between the system prompt, retrieved
// knowledge, the current message, and conversation history.
type Budget struct {
	TotalTokens           int
	SystemReserve         int
	KnowledgeCap          int
	CurrentMessageReserve int
}

// DefaultBudget returns the budget used when no configuration is supplied.
func DefaultBudget() Budget {
	return Budget{
		TotalTokens:           8000,
		SystemReserve:         1500,
		KnowledgeCap:          1000,
		CurrentMessageReserve: 500,
	}
}

// HistoryAllowance returns the token allowance remaining for history after
// the system reserve, the retrieved knowledge actually used, and the
// current-message reserve. Never negative.
func (b Budget) HistoryAllowance(retrievedTokens int) int {
	allowance := b.TotalTokens - b.SystemReserve - retrievedTokens - b.CurrentMessageReserve
	if allowance < 0 {
		return 0
	}
	return allowance
}
