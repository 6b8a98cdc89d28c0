// Package budget estimates token counts for questions and prompts. Answers
// may come from several LLM backends with different tokenizers, so it uses a
// conservative character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"fmt"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxQuestionTokens is the question length limit applied when
	// MAX_QUESTION_TOKENS is unset. Four retrieved passages plus the template
	// use roughly 1.2k tokens, so 2k leaves a 4k-context model room to answer.
	DefaultMaxQuestionTokens = 2000
)

// ExceededError reports text whose estimated size is over a limit.
type ExceededError struct {
	Tokens int
	Max    int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget: estimated %d tokens exceeds limit of %d", e.Tokens, e.Max)
}

// Estimate returns a rough token count for s using the character heuristic.
// Characters are runes, so multi-byte scripts are not over-counted.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role and content plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Check returns an *ExceededError when s is estimated above max tokens.
// A max of 0 or less disables the check.
func Check(s string, max int) error {
	if max <= 0 {
		return nil
	}
	if n := Estimate(s); n > max {
		return &ExceededError{Tokens: n, Max: max}
	}
	return nil
}
