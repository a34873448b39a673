// Package knowledge implements the knowledge store / broker backend (C11):
// an embedded vector search over prior agent outputs and project context,
// scoped explicitly to small per-repository corpora (spec.md §11 rules
// out an ANN/vector-DB dependency for this reason) — brute-force cosine
// similarity over a local deterministic embedding is the whole search
// path.
package knowledge

import "time"

// VectorDim is the fixed embedding dimensionality spec.md §3 names.
const VectorDim = 384

// Item is spec.md §3's KnowledgeItem entity.
type Item struct {
	ID            string
	Vector        []float32
	Text          string
	KnowledgeType string
	ProjectID     string
	SessionID     string
	Agent         string
	Timestamp     time.Time
	Metadata      string // opaque JSON
}

// ItemRequest is what store() accepts: everything but id/vector/timestamp,
// which the store computes.
type ItemRequest struct {
	Text          string
	KnowledgeType string
	ProjectID     string
	SessionID     string
	Agent         string
	Metadata      string
}

// SearchFilters narrow a search before ranking.
type SearchFilters struct {
	ProjectID     string
	KnowledgeType string
	Agent         string
}

// SearchResult pairs an item with its similarity score.
type SearchResult struct {
	Item  Item
	Score float32
}

// Stats is the aggregate view stats() returns.
type Stats struct {
	TotalItems int64
	ByType     map[string]int64
	ByProject  map[string]int64
}
