package types

import "time"

// EntityType classifies a knowledge-graph node. The set is closed: inference
// maps every raw observation onto one of these types.
type EntityType string

const (
	EntityProduct      EntityType = "product"
	EntityVendor       EntityType = "vendor"
	EntityPrice        EntityType = "price"
	EntityLocation     EntityType = "location"
	EntityDate         EntityType = "date"
	EntityAvailability EntityType = "availability"
	EntityCategory     EntityType = "category"
)

// AllEntityTypes lists every entity type, in a stable order. The query engine
// iterates this list when a filter carries no indexed field.
var AllEntityTypes = []EntityType{
	EntityProduct,
	EntityVendor,
	EntityPrice,
	EntityLocation,
	EntityDate,
	EntityAvailability,
	EntityCategory,
}

// Entity is a typed knowledge-graph node with provenance and confidence.
// Entities are created on ingest, may be overwritten in place by a later
// ingest with the same ID, and are removed explicitly.
//
// LastUpdated is expected to be >= ExtractedAt; a violation is a detectable
// inconsistency (see the temporal rule) rather than a hard error.
type Entity struct {
	ID          string           `json:"id"`                   // Unique identifier, caller-assigned
	Type        EntityType       `json:"type"`                 // Closed entity type
	Name        string           `json:"name"`                 // Display name, case-insensitive lookup key
	Properties  map[string]Value `json:"properties,omitempty"` // Open string-keyed property map
	Confidence  float64          `json:"confidence"`           // Extraction confidence (0.0-1.0)
	SourceURL   string           `json:"source_url,omitempty"` // Page the entity was extracted from
	ExtractedAt time.Time        `json:"extracted_at"`         // Creation timestamp
	LastUpdated time.Time        `json:"last_updated"`         // Last overwrite timestamp
}
