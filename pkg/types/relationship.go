package types

import "time"

// RelationType classifies a directed edge between two entities.
type RelationType string

const (
	RelSoldBy      RelationType = "SOLD_BY"
	RelPricedAt    RelationType = "PRICED_AT"
	RelLocatedIn   RelationType = "LOCATED_IN"
	RelCategoryOf  RelationType = "CATEGORY_OF"
	RelAvailableAt RelationType = "AVAILABLE_AT"
	RelChangedFrom RelationType = "CHANGED_FROM"
	RelSimilarTo   RelationType = "SIMILAR_TO"
)

// AllRelationTypes lists every relationship type, in a stable order.
var AllRelationTypes = []RelationType{
	RelSoldBy,
	RelPricedAt,
	RelLocatedIn,
	RelCategoryOf,
	RelAvailableAt,
	RelChangedFrom,
	RelSimilarTo,
}

// Relationship is a typed directed edge between two entities.
//
// Source and Target hold entity IDs, not references. Referential integrity is
// deliberately not enforced on write: entities and relationships may arrive in
// any order, so dangling references are expected transiently and are caught
// later by the orphaned-relationship consistency rule.
type Relationship struct {
	ID          string           `json:"id"`
	Type        RelationType     `json:"type"`
	Source      string           `json:"source"` // Source entity ID
	Target      string           `json:"target"` // Target entity ID
	Properties  map[string]Value `json:"properties,omitempty"`
	Confidence  float64          `json:"confidence"`
	SourceURL   string           `json:"source_url,omitempty"`
	ExtractedAt time.Time        `json:"extracted_at"`
	ValidFrom   *time.Time       `json:"valid_from,omitempty"` // Temporal validity window start
	ValidTo     *time.Time       `json:"valid_to,omitempty"`   // Temporal validity window end
}
