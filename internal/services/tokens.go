package services

import "strings"

// TokenSet is the set of token symbols the wallet accepts.
type TokenSet map[string]struct{}

func NewTokenSet(tokens []string) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Normalize upper-cases token and reports whether it is supported.
func (s TokenSet) Normalize(token string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(token))
	_, ok := s[t]
	return t, ok
}
