package index

import (
	"strings"

	"github.com/Aman-CERP/mojify/internal/catalog"
	"github.com/Aman-CERP/mojify/internal/store"
)

// proposalTitleLen bounds a proposal's title, in runes.
const proposalTitleLen = 100

// Document is one catalog entity prepared for both indexes: the lexical row
// and the text that is embedded for it.
type Document struct {
	Entity    store.IndexedEntity
	EmbedText string
}

// PromptDocument indexes a prompt under its title. The context text comes
// first in the lexical content; the embedding reads title then context.
func PromptDocument(p catalog.Prompt) Document {
	return Document{
		Entity: store.IndexedEntity{
			EntityType: store.EntityPrompt,
			EntityID:   p.ID,
			Title:      p.Title,
			Content:    p.ContextText + " " + p.Title,
		},
		EmbedText: strings.TrimSpace(p.Title + " " + p.ContextText),
	}
}

// AgentDocument indexes an agent by name only.
func AgentDocument(a catalog.Agent) Document {
	return Document{
		Entity: store.IndexedEntity{
			EntityType: store.EntityAgent,
			EntityID:   a.ID,
			Title:      a.Name,
			Content:    a.Name,
		},
		EmbedText: a.Name,
	}
}

// ProposalDocument indexes a proposal's emoji, rationale and parent prompt
// title. It is titled by its rationale, or its emoji when there is none.
func ProposalDocument(p catalog.Proposal) Document {
	content := strings.TrimSpace(p.EmojiString + " " + p.Rationale + " " + p.PromptTitle)
	title := p.Rationale
	if title == "" {
		title = p.EmojiString
	}
	return Document{
		Entity: store.IndexedEntity{
			EntityType: store.EntityProposal,
			EntityID:   p.ID,
			Title:      firstRunes(title, proposalTitleLen),
			Content:    content,
		},
		EmbedText: content,
	}
}

// BuildDocuments prepares prompts, then agents, then proposals.
func BuildDocuments(prompts []catalog.Prompt, agents []catalog.Agent, proposals []catalog.Proposal) []Document {
	docs := make([]Document, 0, len(prompts)+len(agents)+len(proposals))
	for _, p := range prompts {
		docs = append(docs, PromptDocument(p))
	}
	for _, a := range agents {
		docs = append(docs, AgentDocument(a))
	}
	for _, p := range proposals {
		docs = append(docs, ProposalDocument(p))
	}
	return docs
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
