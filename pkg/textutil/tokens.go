package textutil

import (
	"regexp"
	"strings"
)

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// TokenSet lowercases and splits text into a set of word tokens.
func TokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenRE.FindAllString(strings.ToLower(text), -1) {
		out[tok] = struct{}{}
	}
	return out
}

// AddToken inserts a pre-built token (e.g. a "prov:" or "bucket:" marker)
// into an existing set.
func AddToken(set map[string]struct{}, token string) {
	if token != "" {
		set[token] = struct{}{}
	}
}

// Jaccard computes set similarity in [0,1]. Two empty sets are dissimilar.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
