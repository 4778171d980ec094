package llm

// TokenUsage is the token accounting accumulated while observing one response
// stream. A nil field means the backend never reported it, which is distinct
// from a reported count of zero.
type TokenUsage struct {
	PromptTokens     *uint64 `json:"prompt_tokens"`
	CompletionTokens *uint64 `json:"completion_tokens"`
}

// SetPromptTokens records a reported prompt token count.
func (u *TokenUsage) SetPromptTokens(n uint64) {
	u.PromptTokens = &n
}

// SetCompletionTokens records a reported completion token count.
func (u *TokenUsage) SetCompletionTokens(n uint64) {
	u.CompletionTokens = &n
}

// Empty reports whether neither count has been observed.
func (u TokenUsage) Empty() bool {
	return u.PromptTokens == nil && u.CompletionTokens == nil
}

// Total returns the sum of the observed counts and whether any was observed.
func (u TokenUsage) Total() (uint64, bool) {
	if u.Empty() {
		return 0, false
	}

	var total uint64
	if u.PromptTokens != nil {
		total += *u.PromptTokens
	}
	if u.CompletionTokens != nil {
		total += *u.CompletionTokens
	}
	return total, true
}

// Uint64 returns a pointer to n, handy for building expected usages.
func Uint64(n uint64) *uint64 {
	return &n
}
