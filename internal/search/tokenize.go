package search

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+|\p{Han}+`)

// tokenize lower-cases the query and splits it into ASCII word/number runs
// and individual Han-script runs, dropping single-Latin-character noise
// tokens while keeping single CJK tokens (a single Chinese character is
// often meaningful on its own).
func tokenize(query string) []string {
	lower := strings.ToLower(query)
	raw := tokenRe.FindAllString(lower, -1)

	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) == 1 && isASCIILetterOrDigit(t[0]) {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func isASCIILetterOrDigit(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

var technicalTermRe = regexp.MustCompile(`^[a-z0-9]+$`)

func isTechnicalTerm(token string) bool {
	return technicalTermRe.MatchString(token)
}
