package changelog

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// Built-in rule names, usable with EnableRule/DisableRule/RemoveRule.
const (
	RuleDuplicateEntity      = "duplicate_entity"
	RuleOrphanedRelationship = "orphaned_relationship"
	RuleConflictingFact      = "conflicting_fact"
	RuleTemporal             = "temporal_consistency"
	RuleConfidenceAnomaly    = "confidence_anomaly"
)

// futureSlack is how far in the future an extraction timestamp may sit before
// the temporal rule flags it. One minute absorbs clock skew between the
// extractor and the audit host.
const futureSlack = time.Minute

func builtinRules() []*Rule {
	return []*Rule{
		{
			Name:        RuleDuplicateEntity,
			Description: "Entities sharing a type and case-insensitive name",
			Enabled:     true,
			Check:       checkDuplicateEntities,
		},
		{
			Name:        RuleOrphanedRelationship,
			Description: "Relationships whose source or target entity is unknown",
			Enabled:     true,
			Check:       checkOrphanedRelationships,
		},
		{
			Name:        RuleConflictingFact,
			Description: "Facts sharing subject and predicate but disagreeing on object",
			Enabled:     true,
			Check:       checkConflictingFacts,
		},
		{
			Name:        RuleTemporal,
			Description: "Entities updated before creation or extracted in the future",
			Enabled:     true,
			Check:       checkTemporal,
		},
		{
			Name:        RuleConfidenceAnomaly,
			Description: "Records whose confidence deviates more than two standard deviations from the mean",
			Enabled:     true,
			Check:       checkConfidenceAnomalies,
		},
	}
}

// checkDuplicateEntities flags groups of entities sharing (type, lowercased
// name). Groups larger than 3 are HIGH, smaller ones MEDIUM.
func checkDuplicateEntities(entities []*types.Entity, _ []*types.Relationship, _ []*types.Fact) []types.Inconsistency {
	groups := make(map[string][]string)
	for _, e := range entities {
		key := string(e.Type) + "|" + strings.ToLower(e.Name)
		groups[key] = append(groups[key], e.ID)
	}

	var findings []types.Inconsistency
	for key, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		severity := types.SeverityMedium
		if len(ids) > 3 {
			severity = types.SeverityHigh
		}
		name := key[strings.Index(key, "|")+1:]
		findings = append(findings, types.Inconsistency{
			Type:        types.InconsistencyDuplicateEntity,
			RecordIDs:   ids,
			Description: fmt.Sprintf("%d entities share name %q", len(ids), name),
			Severity:    severity,
		})
	}
	return findings
}

// checkOrphanedRelationships flags relationships whose endpoints are not
// currently-known entity IDs. Always HIGH: an orphan either predates its
// entities (transient) or outlived them (real corruption), and the auditor
// cannot tell which.
func checkOrphanedRelationships(entities []*types.Entity, relationships []*types.Relationship, _ []*types.Fact) []types.Inconsistency {
	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[e.ID] = struct{}{}
	}

	var findings []types.Inconsistency
	for _, r := range relationships {
		_, srcOK := known[r.Source]
		_, tgtOK := known[r.Target]
		if srcOK && tgtOK {
			continue
		}
		var missing []string
		if !srcOK {
			missing = append(missing, r.Source)
		}
		if !tgtOK {
			missing = append(missing, r.Target)
		}
		findings = append(findings, types.Inconsistency{
			Type:        types.InconsistencyOrphanedRelationship,
			RecordIDs:   []string{r.ID},
			Description: fmt.Sprintf("relationship %s (%s) references unknown entities: %s", r.ID, r.Type, strings.Join(missing, ", ")),
			Severity:    types.SeverityHigh,
		})
	}
	return findings
}

// checkConflictingFacts flags groups of facts sharing (subject, predicate)
// but disagreeing on object. More than 2 distinct objects is HIGH, else
// MEDIUM.
func checkConflictingFacts(_ []*types.Entity, _ []*types.Relationship, facts []*types.Fact) []types.Inconsistency {
	type group struct {
		ids     []string
		objects map[string]struct{}
	}
	groups := make(map[string]*group)
	for _, f := range facts {
		key := f.Subject + "|" + f.Predicate
		g, ok := groups[key]
		if !ok {
			g = &group{objects: make(map[string]struct{})}
			groups[key] = g
		}
		g.ids = append(g.ids, f.ID)
		g.objects[f.ObjectKey()] = struct{}{}
	}

	var findings []types.Inconsistency
	for key, g := range groups {
		if len(g.objects) < 2 {
			continue
		}
		sort.Strings(g.ids)
		severity := types.SeverityMedium
		if len(g.objects) > 2 {
			severity = types.SeverityHigh
		}
		parts := strings.SplitN(key, "|", 2)
		findings = append(findings, types.Inconsistency{
			Type:        types.InconsistencyConflictingFact,
			RecordIDs:   g.ids,
			Description: fmt.Sprintf("%d facts about %s/%s disagree on %d distinct objects", len(g.ids), parts[0], parts[1], len(g.objects)),
			Severity:    severity,
		})
	}
	return findings
}

// checkTemporal flags entities whose LastUpdated predates ExtractedAt (LOW)
// and entities extracted more than a minute in the future (MEDIUM).
func checkTemporal(entities []*types.Entity, _ []*types.Relationship, _ []*types.Fact) []types.Inconsistency {
	now := time.Now()

	var findings []types.Inconsistency
	for _, e := range entities {
		if e.LastUpdated.Before(e.ExtractedAt) {
			findings = append(findings, types.Inconsistency{
				Type:        types.InconsistencyTemporal,
				RecordIDs:   []string{e.ID},
				Description: fmt.Sprintf("entity %s was last updated (%s) before it was extracted (%s)", e.ID, e.LastUpdated.Format(time.RFC3339), e.ExtractedAt.Format(time.RFC3339)),
				Severity:    types.SeverityLow,
			})
		}
		if e.ExtractedAt.After(now.Add(futureSlack)) {
			findings = append(findings, types.Inconsistency{
				Type:        types.InconsistencyTemporal,
				RecordIDs:   []string{e.ID},
				Description: fmt.Sprintf("entity %s claims extraction at %s, in the future", e.ID, e.ExtractedAt.Format(time.RFC3339)),
				Severity:    types.SeverityMedium,
			})
		}
	}
	return findings
}

// checkConfidenceAnomalies computes the mean and standard deviation of
// confidence across all entities, relationships, and facts, and flags any
// record deviating by more than two standard deviations. Confidence below 0.1
// is HIGH, otherwise MEDIUM.
func checkConfidenceAnomalies(entities []*types.Entity, relationships []*types.Relationship, facts []*types.Fact) []types.Inconsistency {
	type scored struct {
		id         string
		kind       string
		confidence float64
	}
	var records []scored
	for _, e := range entities {
		records = append(records, scored{e.ID, "entity", e.Confidence})
	}
	for _, r := range relationships {
		records = append(records, scored{r.ID, "relationship", r.Confidence})
	}
	for _, f := range facts {
		records = append(records, scored{f.ID, "fact", f.Confidence})
	}
	if len(records) < 2 {
		return nil
	}

	var sum float64
	for _, rec := range records {
		sum += rec.confidence
	}
	mean := sum / float64(len(records))

	var variance float64
	for _, rec := range records {
		d := rec.confidence - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(records)))
	if stddev == 0 {
		return nil
	}

	var findings []types.Inconsistency
	for _, rec := range records {
		if math.Abs(rec.confidence-mean) <= 2*stddev {
			continue
		}
		severity := types.SeverityMedium
		if rec.confidence < 0.1 {
			severity = types.SeverityHigh
		}
		findings = append(findings, types.Inconsistency{
			Type:        types.InconsistencyConfidenceAnomaly,
			RecordIDs:   []string{rec.id},
			Description: fmt.Sprintf("%s %s has confidence %.3f, more than two standard deviations from the mean %.3f (stddev %.3f)", rec.kind, rec.id, rec.confidence, mean, stddev),
			Severity:    severity,
		})
	}
	return findings
}
