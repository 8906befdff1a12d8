package types

import "time"

// EventType identifies one of the nine mutation kinds recorded by the change log.
type EventType string

const (
	EventEntityCreated       EventType = "entity_created"
	EventEntityUpdated       EventType = "entity_updated"
	EventEntityDeleted       EventType = "entity_deleted"
	EventRelationshipCreated EventType = "relationship_created"
	EventRelationshipUpdated EventType = "relationship_updated"
	EventRelationshipDeleted EventType = "relationship_deleted"
	EventFactCreated         EventType = "fact_created"
	EventFactUpdated         EventType = "fact_updated"
	EventFactDeleted         EventType = "fact_deleted"
)

// RecordKind names one of the three record families for history lookups.
type RecordKind string

const (
	KindEntity       RecordKind = "entity"
	KindRelationship RecordKind = "relationship"
	KindFact         RecordKind = "fact"
)

// ChangeEvent is an immutable record of one store mutation. Events from one
// ingest operation share a SessionID so a whole episode can be reviewed as a
// unit.
type ChangeEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RecordID  string      `json:"record_id"`            // ID of the affected entity/relationship/fact
	Before    interface{} `json:"before,omitempty"`     // Value prior to the mutation, nil on create
	After     interface{} `json:"after,omitempty"`      // Value after the mutation, nil on delete
	SourceURL string      `json:"source_url,omitempty"` // Provenance of the mutation
	SessionID string      `json:"session_id,omitempty"` // Groups events from one ingest operation
	Timestamp time.Time   `json:"timestamp"`
}

// Kind returns the record family the event applies to.
func (e *ChangeEvent) Kind() RecordKind {
	switch e.Type {
	case EventEntityCreated, EventEntityUpdated, EventEntityDeleted:
		return KindEntity
	case EventRelationshipCreated, EventRelationshipUpdated, EventRelationshipDeleted:
		return KindRelationship
	default:
		return KindFact
	}
}
