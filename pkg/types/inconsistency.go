package types

import "time"

// InconsistencyType identifies the class of logical contradiction detected by
// a consistency rule.
type InconsistencyType string

const (
	InconsistencyDuplicateEntity      InconsistencyType = "DUPLICATE_ENTITY"
	InconsistencyConflictingFact      InconsistencyType = "CONFLICTING_FACT"
	InconsistencyOrphanedRelationship InconsistencyType = "ORPHANED_RELATIONSHIP"
	InconsistencyTemporal             InconsistencyType = "TEMPORAL_INCONSISTENCY"
	InconsistencyConfidenceAnomaly    InconsistencyType = "CONFIDENCE_ANOMALY"

	// InconsistencyMissingEntity is reserved for rules that detect references
	// to entities expected but never ingested. No built-in rule emits it.
	InconsistencyMissingEntity InconsistencyType = "MISSING_ENTITY"
)

// Severity ranks how urgently an inconsistency needs attention.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Inconsistency is a detected logical contradiction among stored records.
// Detection is append-only: a finding that no longer reproduces is not
// retracted automatically, it stays until an external caller resolves it.
type Inconsistency struct {
	ID          string            `json:"id"`
	Type        InconsistencyType `json:"type"`
	RecordIDs   []string          `json:"record_ids"` // Offending record IDs
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
	DetectedAt  time.Time         `json:"detected_at"`
	Resolved    bool              `json:"resolved"`
	Resolution  string            `json:"resolution,omitempty"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
}
