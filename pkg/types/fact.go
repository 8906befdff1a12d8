package types

import "time"

// Fact is a subject/predicate/object triple, more general than a typed
// Relationship. Subject is always an entity ID; Predicate is an open string;
// Object is either an entity ID (a string Value) or a literal value.
type Fact struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"` // Entity ID
	Predicate   string    `json:"predicate"`
	Object      Value     `json:"object"`
	Confidence  float64   `json:"confidence"`
	SourceURL   string    `json:"source_url,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// ObjectKey returns the canonical index key for the fact's object.
func (f *Fact) ObjectKey() string {
	return f.Object.Key()
}
