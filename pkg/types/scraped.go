package types

import "time"

// Observation is one raw key/value pair pulled off a page, with optional
// selector/attribute metadata describing where it came from.
type Observation struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Selector  string `json:"selector,omitempty"`  // CSS selector that produced the value
	Attribute string `json:"attribute,omitempty"` // Attribute read, empty for text content
}

// ScrapedData is the inbound record from the content-extraction collaborator:
// everything one extraction episode learned from one page. The world model's
// inference step turns it into typed entities, relationships, and facts.
type ScrapedData struct {
	URL        string        `json:"url"`
	Domain     string        `json:"domain"`
	Timestamp  time.Time     `json:"timestamp"`
	Extracted  []Observation `json:"extracted"`
	Confidence float64       `json:"confidence"`           // Extractor's overall confidence
	Goal       string        `json:"goal,omitempty"`       // Free-text extraction goal
	SessionID  string        `json:"session_id,omitempty"` // Optional caller-provided session
}
