package types

import "time"

// Snapshot is a full export of the world model: store records plus the change
// log's events, the inconsistency set, and the audit rules' enablement state.
// Importing a snapshot always clears prior state first; there are no merge
// semantics.
type Snapshot struct {
	Entities        []*Entity        `json:"entities"`
	Relationships   []*Relationship  `json:"relationships"`
	Facts           []*Fact          `json:"facts"`
	Events          []*ChangeEvent   `json:"events"`
	Inconsistencies []*Inconsistency `json:"inconsistencies"`
	Rules           []*RuleState     `json:"rules"`
	ExportedAt      time.Time        `json:"exported_at"`
}

// RuleState is the serializable part of a consistency rule. Check functions
// cannot round-trip through a snapshot, so importing applies the enabled flag
// to whichever registered rule carries the same name.
type RuleState struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}
