package utils

import "strings"

// Token counts are estimated at four characters per token. That is close
// enough for budget warnings and prompt trimming; it is not a tokenizer.
const charsPerToken = 4

// CountTokens estimates the number of tokens in text. Non-empty text counts
// as at least one token.
func CountTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	if n < charsPerToken {
		return 1
	}
	return n / charsPerToken
}

// TruncateToTokenLimit cuts text to roughly limit tokens, preferring the last
// line break inside the budget so that JSON or table rows are not split.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	max := limit * charsPerToken
	if max >= len(runes) {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		return cut[:i]
	}
	return cut
}

// TokenBreakdown maps each labelled section to its estimated token count.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
