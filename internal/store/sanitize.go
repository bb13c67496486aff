package store

import (
	"strings"
	"unicode"
)

// DefaultMaxLexicalTerms bounds the fan-out of the lexical OR query.
const DefaultMaxLexicalTerms = 5

// SanitizeQuery reduces a raw query to plain search terms. Every rune that is
// not a letter, digit or whitespace becomes a space, so query-language
// operators and quotes never reach the index.
func SanitizeQuery(raw string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, raw)
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// LexicalTerms returns the first maxTerms tokens (all when maxTerms <= 0).
func LexicalTerms(tokens []string, maxTerms int) []string {
	if maxTerms > 0 && len(tokens) > maxTerms {
		return tokens[:maxTerms]
	}
	return tokens
}

// MatchExpression renders terms as an FTS5 OR expression. Each term is a
// quoted string so words such as AND, OR, NOT and NEAR match literally.
func MatchExpression(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
