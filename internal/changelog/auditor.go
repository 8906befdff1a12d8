package changelog

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// DefaultCheckInterval rate-limits full consistency scans. A check invoked
// within the interval of the last run returns the current unresolved set
// without recomputation: the duplicate and conflict rules group every record
// by composite key and the statistical rules touch the whole dataset, so
// unbounded re-runs would be costly.
const DefaultCheckInterval = 60 * time.Second

// RuleFunc is a pure function from the three record collections to a list of
// findings. It is the auditor's only extension point, deliberately narrow.
//
// The returned findings need no ID or detection timestamp; the auditor
// assigns both when merging.
type RuleFunc func(entities []*types.Entity, relationships []*types.Relationship, facts []*types.Fact) []types.Inconsistency

// Rule is one consistency rule, independently enable/disable-able.
type Rule struct {
	Name        string
	Description string
	Enabled     bool
	Check       RuleFunc
}

// Auditor runs consistency rules over the record set and tracks the findings'
// resolution lifecycle. Findings are append-only: a finding that stops
// reproducing is not retracted, it stays until explicitly resolved.
type Auditor struct {
	rules    []*Rule
	findings map[string]*types.Inconsistency // By finding ID
	seen     map[string]string               // Finding fingerprint -> finding ID
	lastRun  time.Time
	interval time.Duration
}

// NewAuditor creates an auditor with the five built-in rules enabled and the
// default rate-limit interval.
func NewAuditor() *Auditor {
	return NewAuditorWithInterval(DefaultCheckInterval)
}

// NewAuditorWithInterval creates an auditor with a custom rate-limit interval.
// An interval of zero disables rate limiting.
func NewAuditorWithInterval(interval time.Duration) *Auditor {
	return &Auditor{
		rules:    builtinRules(),
		findings: make(map[string]*types.Inconsistency),
		seen:     make(map[string]string),
		interval: interval,
	}
}

// CheckConsistency runs every enabled rule against the given record set and
// merges new findings into the persistent set. If called again within the
// rate-limit interval, it returns the current unresolved findings without
// recomputation.
func (a *Auditor) CheckConsistency(entities []*types.Entity, relationships []*types.Relationship, facts []*types.Fact) []*types.Inconsistency {
	now := time.Now()
	if a.interval > 0 && !a.lastRun.IsZero() && now.Sub(a.lastRun) < a.interval {
		return a.Unresolved()
	}
	a.lastRun = now

	for _, rule := range a.rules {
		if !rule.Enabled {
			continue
		}
		for _, finding := range a.runRule(rule, entities, relationships, facts) {
			a.merge(finding, now)
		}
	}
	return a.Unresolved()
}

// runRule executes one rule, isolating panics so a faulty rule cannot abort
// the audit of the remaining rules.
func (a *Auditor) runRule(rule *Rule, entities []*types.Entity, relationships []*types.Relationship, facts []*types.Fact) (findings []types.Inconsistency) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("auditor: rule %q panicked, skipping: %v", rule.Name, r)
			findings = nil
		}
	}()
	return rule.Check(entities, relationships, facts)
}

// fingerprint identifies a finding by its type and offending record set, so
// repeated runs over an unchanged dataset converge on one finding instead of
// accumulating duplicates. IDs themselves come from a collision-free
// generator, never from wall-clock timestamps.
func fingerprint(inc types.Inconsistency) string {
	ids := append([]string(nil), inc.RecordIDs...)
	sort.Strings(ids)
	return string(inc.Type) + "|" + strings.Join(ids, ",")
}

func (a *Auditor) merge(inc types.Inconsistency, now time.Time) {
	fp := fingerprint(inc)
	if existingID, ok := a.seen[fp]; ok {
		if existing := a.findings[existingID]; existing != nil && !existing.Resolved {
			// Already tracked and still open: refresh the detection time,
			// keep the ID stable.
			existing.DetectedAt = now
			return
		}
	}
	inc.ID = uuid.NewString()
	inc.DetectedAt = now
	a.findings[inc.ID] = &inc
	a.seen[fp] = inc.ID
}

// Unresolved returns all open findings, oldest detection first.
func (a *Auditor) Unresolved() []*types.Inconsistency {
	var open []*types.Inconsistency
	for _, inc := range a.findings {
		if !inc.Resolved {
			open = append(open, inc)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].DetectedAt.Equal(open[j].DetectedAt) {
			return open[i].ID < open[j].ID
		}
		return open[i].DetectedAt.Before(open[j].DetectedAt)
	})
	return open
}

// All returns every finding, resolved included, oldest detection first.
func (a *Auditor) All() []*types.Inconsistency {
	out := make([]*types.Inconsistency, 0, len(a.findings))
	for _, inc := range a.findings {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// Resolve marks a finding resolved with a free-text resolution. It returns
// false (not an error) when the ID is unknown; resolving an already-resolved
// finding just updates the note.
func (a *Auditor) Resolve(id, resolution string) bool {
	inc, ok := a.findings[id]
	if !ok {
		return false
	}
	now := time.Now()
	inc.Resolved = true
	inc.Resolution = resolution
	inc.ResolvedAt = &now
	return true
}

// AddRule registers a custom rule. A rule with a duplicate name replaces the
// existing one.
func (a *Auditor) AddRule(rule *Rule) {
	for i, existing := range a.rules {
		if existing.Name == rule.Name {
			a.rules[i] = rule
			return
		}
	}
	a.rules = append(a.rules, rule)
}

// RemoveRule unregisters a rule by name. Returns false if no rule matched.
func (a *Auditor) RemoveRule(name string) bool {
	for i, rule := range a.rules {
		if rule.Name == name {
			a.rules = append(a.rules[:i], a.rules[i+1:]...)
			return true
		}
	}
	return false
}

// EnableRule enables a rule by name. Returns false if no rule matched.
func (a *Auditor) EnableRule(name string) bool {
	return a.setEnabled(name, true)
}

// DisableRule disables a rule by name. Returns false if no rule matched.
func (a *Auditor) DisableRule(name string) bool {
	return a.setEnabled(name, false)
}

func (a *Auditor) setEnabled(name string, enabled bool) bool {
	for _, rule := range a.rules {
		if rule.Name == name {
			rule.Enabled = enabled
			return true
		}
	}
	return false
}

// Rules returns the registered rules in evaluation order.
func (a *Auditor) Rules() []*Rule {
	out := make([]*Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Import replaces the finding set, rebuilding fingerprints. Used for snapshot
// import.
func (a *Auditor) Import(findings []*types.Inconsistency) {
	a.findings = make(map[string]*types.Inconsistency)
	a.seen = make(map[string]string)
	for _, inc := range findings {
		copied := *inc
		a.findings[copied.ID] = &copied
		a.seen[fingerprint(copied)] = copied.ID
	}
}

// ExportRules returns the serializable state of the registered rules in
// evaluation order.
func (a *Auditor) ExportRules() []*types.RuleState {
	out := make([]*types.RuleState, 0, len(a.rules))
	for _, rule := range a.rules {
		out = append(out, &types.RuleState{
			Name:        rule.Name,
			Description: rule.Description,
			Enabled:     rule.Enabled,
		})
	}
	return out
}

// ImportRules applies persisted enabled flags to registered rules matched by
// name. Check functions do not serialize, so states naming no registered rule
// are dropped and rules absent from the states keep their current flag.
func (a *Auditor) ImportRules(states []*types.RuleState) {
	for _, state := range states {
		a.setEnabled(state.Name, state.Enabled)
	}
}
