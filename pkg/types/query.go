package types

import "time"

// Direction controls which edges a graph traversal follows from the current
// node: edges where it is the source, the target, or either.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// EntityFilter selects entities. Every field is optional; zero values mean
// "any". Type, Name, and Source hit store indexes; anything else filters the
// candidate set after lookup.
type EntityFilter struct {
	Type          EntityType `json:"type,omitempty"`
	Name          string     `json:"name,omitempty"` // Case-insensitive exact match
	Source        string     `json:"source,omitempty"`
	MinConfidence float64    `json:"min_confidence,omitempty"`
}

// RelationshipFilter selects relationships by type and/or endpoint IDs.
type RelationshipFilter struct {
	Type   RelationType `json:"type,omitempty"`
	Source string       `json:"source,omitempty"` // Source entity ID
	Target string       `json:"target,omitempty"` // Target entity ID
}

// FactFilter selects facts by subject, predicate, and/or canonical object key.
// A filter with none of the three set yields no facts: facts have no type
// partition to scan, so the engine declines the full scan by policy.
type FactFilter struct {
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Object    string `json:"object,omitempty"` // Canonical object key (see Value.Key)
}

// TimeRange bounds ExtractedAt for entities and relationships, inclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TraversalSpec configures bounded breadth-first graph traversal.
type TraversalSpec struct {
	StartID           string         `json:"start_id"`
	MaxDepth          int            `json:"max_depth"` // Edges traversed, not nodes visited
	RelationshipTypes []RelationType `json:"relationship_types,omitempty"`
	Direction         Direction      `json:"direction,omitempty"` // Defaults to outgoing
}

// SortSpec orders results before pagination. Valid fields are "extracted_at",
// "confidence", and for entities also "last_updated" and "name". An unknown
// field silently yields no ordering: queries are untrusted data, not program
// invariants.
type SortSpec struct {
	Field string `json:"field"`
	Order string `json:"order,omitempty"` // "asc" (default) or "desc"
}

// WorldModelQuery is a structured read request. Each section is independently
// optional; an absent section contributes an empty result list.
type WorldModelQuery struct {
	Entities      *EntityFilter       `json:"entities,omitempty"`
	Relationships *RelationshipFilter `json:"relationships,omitempty"`
	Facts         *FactFilter         `json:"facts,omitempty"`
	TimeRange     *TimeRange          `json:"time_range,omitempty"`
	Traversal     *TraversalSpec      `json:"traversal,omitempty"`
	Sort          *SortSpec           `json:"sort,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        int                 `json:"offset,omitempty"`
}

// TraversalResult is the BFS expansion tree: deduplicated nodes and edges plus
// the first-discovery paths recorded during expansion. It is not an
// enumeration of all simple paths.
type TraversalResult struct {
	Nodes []*Entity       `json:"nodes"`
	Edges []*Relationship `json:"edges"`
	Paths [][]string      `json:"paths"` // Entity ID sequences
}

// WorldModelResponse is the result of one query. HasMore is a coarse signal
// derived from pre-pagination counts, not a precise remaining count.
type WorldModelResponse struct {
	Entities      []*Entity        `json:"entities"`
	Relationships []*Relationship  `json:"relationships"`
	Facts         []*Fact          `json:"facts"`
	Graph         *TraversalResult `json:"graph,omitempty"`
	TotalEntities int              `json:"total_entities"`
	TotalRels     int              `json:"total_relationships"`
	TotalFacts    int              `json:"total_facts"`
	HasMore       bool             `json:"has_more"`
	Cached        bool             `json:"cached"`
	QueryTime     time.Duration    `json:"query_time_ns"`
}
