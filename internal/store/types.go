// Package store provides the search index persistence layer: the lexical
// (BM25) index over catalog entities and the entity embedding table.
package store

import (
	"context"
	"strings"
)

// EntityType identifies which catalog collection an indexed entity came from.
type EntityType string

const (
	EntityPrompt   EntityType = "prompt"
	EntityAgent    EntityType = "agent"
	EntityProposal EntityType = "proposal"
)

// AllEntityTypes lists every indexable entity type in index order.
var AllEntityTypes = []EntityType{EntityPrompt, EntityAgent, EntityProposal}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPrompt, EntityAgent, EntityProposal:
		return true
	}
	return false
}

// ParseEntityTypes parses a comma separated filter such as "prompt,agent".
// Unknown values are dropped; a result with no valid values is nil, which
// every search path treats as "no filter".
func ParseEntityTypes(csv string) []EntityType {
	return FilterEntityTypes(strings.Split(csv, ","))
}

// FilterEntityTypes keeps the recognised values of raw, deduplicated, in order.
func FilterEntityTypes(raw []string) []EntityType {
	var out []EntityType
	seen := make(map[EntityType]bool, len(raw))
	for _, r := range raw {
		t := EntityType(strings.TrimSpace(r))
		if !t.Valid() || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Key is the composite natural key of an indexed entity.
type Key struct {
	Type EntityType
	ID   string
}

// String returns "type:id".
func (k Key) String() string {
	return string(k.Type) + ":" + k.ID
}

// IndexedEntity is one lexical index row.
type IndexedEntity struct {
	EntityType EntityType
	EntityID   string
	Title      string
	Content    string
}

// Key returns the entity's composite key.
func (e *IndexedEntity) Key() Key {
	return Key{Type: e.EntityType, ID: e.EntityID}
}

// EmbeddingRecord is one embedding table row. Content is the text that was
// embedded, kept so vector-only hits can be titled.
type EmbeddingRecord struct {
	EntityType EntityType
	EntityID   string
	Content    string
	Vector     []float32
}

// Key returns the record's composite key.
func (r *EmbeddingRecord) Key() Key {
	return Key{Type: r.EntityType, ID: r.EntityID}
}

// LexicalQuery is a sanitized lexical search request.
type LexicalQuery struct {
	// Terms are OR-combined; at least one must match.
	Terms []string
	// Types restricts hits to these entity types. Empty means all.
	Types []EntityType
	Limit int
}

// LexicalHit is a BM25-ranked match. Higher Score is better.
type LexicalHit struct {
	EntityType EntityType
	EntityID   string
	Title      string
	// Snippet is a short window of matched content, empty when unavailable.
	Snippet string
	Score   float64
}

// Key returns the hit's composite key.
func (h *LexicalHit) Key() Key {
	return Key{Type: h.EntityType, ID: h.EntityID}
}

// LexicalIndex is a full-text BM25 index over catalog entities.
type LexicalIndex interface {
	// Clear removes every row.
	Clear(ctx context.Context) error

	// Index adds rows. Callers clear first; keys are not deduplicated.
	Index(ctx context.Context, entities []*IndexedEntity) error

	// Search returns hits best first. Malformed query syntax yields no hits,
	// not an error. A closed or unreachable index yields StoreUnavailable.
	Search(ctx context.Context, q LexicalQuery) ([]*LexicalHit, error)

	// Count returns the number of indexed rows.
	Count(ctx context.Context) (int, error)

	Close() error
}

// EmbeddingStore is a keyed table of entity vectors.
type EmbeddingStore interface {
	Clear(ctx context.Context) error

	// Upsert writes records; the latest write per key wins.
	Upsert(ctx context.Context, records []*EmbeddingRecord) error

	// Scan streams every record whose type is in types (all when empty).
	// Returning an error from fn stops the scan and is returned as-is.
	Scan(ctx context.Context, types []EntityType, fn func(*EmbeddingRecord) error) error

	Count(ctx context.Context) (int, error)

	Close() error
}
