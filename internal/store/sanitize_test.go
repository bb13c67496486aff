package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain words", "launch day", []string{"launch", "day"}},
		{"operator punctuation stripped", `"launch" AND -day*`, []string{"launch", "AND", "day"}},
		{"column filter stripped", "title:launch", []string{"title", "launch"}},
		{"unicode letters kept", "café über 東京", []string{"café", "über", "東京"}},
		{"digits kept", "round 42", []string{"round", "42"}},
		{"only punctuation", "???", nil},
		{"whitespace only", " \t\n ", nil},
		{"emoji dropped", "🔥 launch 🚀", []string{"launch"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeQuery(tt.input))
		})
	}
}

func TestLexicalTerms_CapsFanOut(t *testing.T) {
	tokens := []string{"a", "b", "c", "d", "e", "f", "g"}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, LexicalTerms(tokens, DefaultMaxLexicalTerms))
	assert.Equal(t, []string{"a", "b"}, LexicalTerms(tokens[:2], DefaultMaxLexicalTerms))
	assert.Len(t, LexicalTerms(tokens, 0), 7)
}

func TestMatchExpression(t *testing.T) {
	assert.Equal(t, `"launch" OR "day"`, MatchExpression([]string{"launch", "day"}))
	assert.Equal(t, `"launch"`, MatchExpression([]string{"launch"}))
	assert.Equal(t, `"rock" OR "AND" OR "NOT"`, MatchExpression([]string{"rock", "AND", "NOT"}))
}

func TestParseEntityTypes(t *testing.T) {
	tests := []struct {
		input string
		want  []EntityType
	}{
		{"prompt", []EntityType{EntityPrompt}},
		{"prompt, agent", []EntityType{EntityPrompt, EntityAgent}},
		{"proposal,bogus,proposal", []EntityType{EntityProposal}},
		{"bogus", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEntityTypes(tt.input))
		})
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "agent:a-1", Key{Type: EntityAgent, ID: "a-1"}.String())
}
