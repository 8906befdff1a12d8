package changelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func auditEntity(id string, entityType types.EntityType, name string, confidence float64) *types.Entity {
	now := time.Now()
	return &types.Entity{
		ID:          id,
		Type:        entityType,
		Name:        name,
		Confidence:  confidence,
		ExtractedAt: now.Add(-time.Hour),
		LastUpdated: now,
	}
}

func findByType(findings []*types.Inconsistency, t types.InconsistencyType) []*types.Inconsistency {
	var out []*types.Inconsistency
	for _, f := range findings {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func TestDuplicateEntityDetection(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose Bouquet", 0.9),
		auditEntity("a2", types.EntityProduct, "rose bouquet", 0.9),
		auditEntity("a3", types.EntityVendor, "Rose Bouquet", 0.9), // Different type, not a duplicate
	}

	findings := a.CheckConsistency(entities, nil, nil)
	dups := findByType(findings, types.InconsistencyDuplicateEntity)
	require.Len(t, dups, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, dups[0].RecordIDs)
	assert.Equal(t, types.SeverityMedium, dups[0].Severity)
}

func TestDuplicateEntity_LargeGroupIsHigh(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Tulip", 0.9),
		auditEntity("a2", types.EntityProduct, "tulip", 0.9),
		auditEntity("a3", types.EntityProduct, "TULIP", 0.9),
		auditEntity("a4", types.EntityProduct, "Tulip", 0.9),
	}

	findings := a.CheckConsistency(entities, nil, nil)
	dups := findByType(findings, types.InconsistencyDuplicateEntity)
	require.Len(t, dups, 1)
	assert.Equal(t, types.SeverityHigh, dups[0].Severity)
}

func TestOrphanedRelationshipDetection(t *testing.T) {
	a := NewAuditorWithInterval(0)
	rels := []*types.Relationship{{
		ID:          "r1",
		Type:        types.RelSoldBy,
		Source:      "missing1",
		Target:      "missing2",
		Confidence:  0.8,
		ExtractedAt: time.Now(),
	}}

	findings := a.CheckConsistency(nil, rels, nil)
	orphans := findByType(findings, types.InconsistencyOrphanedRelationship)
	require.Len(t, orphans, 1)
	assert.Equal(t, []string{"r1"}, orphans[0].RecordIDs)
	assert.Equal(t, types.SeverityHigh, orphans[0].Severity)
}

func TestConflictingFactDetection(t *testing.T) {
	a := NewAuditorWithInterval(0)
	facts := []*types.Fact{
		{ID: "f1", Subject: "e1", Predicate: "price", Object: types.NumberValue(10)},
		{ID: "f2", Subject: "e1", Predicate: "price", Object: types.NumberValue(12)},
		{ID: "f3", Subject: "e1", Predicate: "color", Object: types.StringValue("red")},
		{ID: "f4", Subject: "e2", Predicate: "price", Object: types.NumberValue(10)},
	}

	findings := a.CheckConsistency(nil, nil, facts)
	conflicts := findByType(findings, types.InconsistencyConflictingFact)
	require.Len(t, conflicts, 1)
	assert.ElementsMatch(t, []string{"f1", "f2"}, conflicts[0].RecordIDs)
	assert.Equal(t, types.SeverityMedium, conflicts[0].Severity)
}

func TestConflictingFact_ManyObjectsIsHigh(t *testing.T) {
	a := NewAuditorWithInterval(0)
	facts := []*types.Fact{
		{ID: "f1", Subject: "e1", Predicate: "price", Object: types.NumberValue(10)},
		{ID: "f2", Subject: "e1", Predicate: "price", Object: types.NumberValue(12)},
		{ID: "f3", Subject: "e1", Predicate: "price", Object: types.NumberValue(14)},
	}

	findings := a.CheckConsistency(nil, nil, facts)
	conflicts := findByType(findings, types.InconsistencyConflictingFact)
	require.Len(t, conflicts, 1)
	assert.Equal(t, types.SeverityHigh, conflicts[0].Severity)
}

func TestTemporalDetection(t *testing.T) {
	a := NewAuditorWithInterval(0)
	now := time.Now()

	backwards := auditEntity("e1", types.EntityProduct, "A", 0.9)
	backwards.ExtractedAt = now
	backwards.LastUpdated = now.Add(-time.Hour)

	future := auditEntity("e2", types.EntityProduct, "B", 0.9)
	future.ExtractedAt = now.Add(10 * time.Minute)
	future.LastUpdated = future.ExtractedAt

	ok := auditEntity("e3", types.EntityProduct, "C", 0.9)

	findings := a.CheckConsistency([]*types.Entity{backwards, future, ok}, nil, nil)
	temporal := findByType(findings, types.InconsistencyTemporal)
	require.Len(t, temporal, 2)

	bySeverity := map[types.Severity]string{}
	for _, f := range temporal {
		bySeverity[f.Severity] = f.RecordIDs[0]
	}
	assert.Equal(t, "e1", bySeverity[types.SeverityLow])
	assert.Equal(t, "e2", bySeverity[types.SeverityMedium])
}

func TestConfidenceAnomalyDetection(t *testing.T) {
	a := NewAuditorWithInterval(0)

	// Many records near 0.9 and one extreme outlier near zero.
	var entities []*types.Entity
	for i := 0; i < 20; i++ {
		entities = append(entities, auditEntity(idFor(i), types.EntityProduct, nameFor(i), 0.9))
	}
	outlier := auditEntity("outlier", types.EntityProduct, "Outlier", 0.01)
	entities = append(entities, outlier)

	findings := a.CheckConsistency(entities, nil, nil)
	anomalies := findByType(findings, types.InconsistencyConfidenceAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, []string{"outlier"}, anomalies[0].RecordIDs)
	assert.Equal(t, types.SeverityHigh, anomalies[0].Severity)
}

func idFor(i int) string   { return "e" + string(rune('a'+i)) }
func nameFor(i int) string { return "Item " + string(rune('a'+i)) }

func TestCheckConsistency_RateLimited(t *testing.T) {
	a := NewAuditorWithInterval(time.Hour)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose", 0.9),
		auditEntity("a2", types.EntityProduct, "rose", 0.9),
	}

	first := a.CheckConsistency(entities, nil, nil)
	require.Len(t, findByType(first, types.InconsistencyDuplicateEntity), 1)

	// Second call within the window sees the old findings even though the
	// dataset now contains a second duplicate pair.
	more := append(entities,
		auditEntity("b1", types.EntityVendor, "Bloom", 0.9),
		auditEntity("b2", types.EntityVendor, "bloom", 0.9),
	)
	second := a.CheckConsistency(more, nil, nil)
	assert.Len(t, findByType(second, types.InconsistencyDuplicateEntity), 1)
}

func TestCheckConsistency_Deterministic(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose", 0.9),
		auditEntity("a2", types.EntityProduct, "rose", 0.9),
	}

	first := a.CheckConsistency(entities, nil, nil)
	second := a.CheckConsistency(entities, nil, nil)

	// Same finding set: the unchanged duplicate group merges into the
	// existing finding instead of accumulating.
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].RecordIDs, second[0].RecordIDs)
}

func TestResolve(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose", 0.9),
		auditEntity("a2", types.EntityProduct, "rose", 0.9),
	}

	findings := a.CheckConsistency(entities, nil, nil)
	require.Len(t, findings, 1)

	assert.True(t, a.Resolve(findings[0].ID, "merged a2 into a1"))
	assert.Empty(t, a.Unresolved())
	assert.False(t, a.Resolve("nope", "unknown id"))

	resolved := a.All()[0]
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "merged a2 into a1", resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)
}

func TestRuleManagement(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose", 0.9),
		auditEntity("a2", types.EntityProduct, "rose", 0.9),
	}

	require.True(t, a.DisableRule(RuleDuplicateEntity))
	findings := a.CheckConsistency(entities, nil, nil)
	assert.Empty(t, findByType(findings, types.InconsistencyDuplicateEntity))

	require.True(t, a.EnableRule(RuleDuplicateEntity))
	findings = a.CheckConsistency(entities, nil, nil)
	assert.Len(t, findByType(findings, types.InconsistencyDuplicateEntity), 1)

	assert.False(t, a.EnableRule("unknown"))
	assert.True(t, a.RemoveRule(RuleConfidenceAnomaly))
	assert.False(t, a.RemoveRule(RuleConfidenceAnomaly))
	assert.Len(t, a.Rules(), 4)
}

func TestCheckConsistency_RefreshesOpenFindings(t *testing.T) {
	a := NewAuditorWithInterval(0)
	entities := []*types.Entity{
		auditEntity("a1", types.EntityProduct, "Rose", 0.9),
		auditEntity("a2", types.EntityProduct, "rose", 0.9),
	}

	first := a.CheckConsistency(entities, nil, nil)
	require.Len(t, first, 1)
	firstDetected := first[0].DetectedAt

	time.Sleep(5 * time.Millisecond)
	second := a.CheckConsistency(entities, nil, nil)
	require.Len(t, second, 1)

	// Re-detection keeps the finding ID stable but moves its detection time.
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, second[0].DetectedAt.After(firstDetected))
}

func TestRuleStateRoundTrip(t *testing.T) {
	a := NewAuditorWithInterval(0)
	require.True(t, a.DisableRule(RuleConfidenceAnomaly))

	states := a.ExportRules()
	require.Len(t, states, 5)

	b := NewAuditorWithInterval(0)
	b.ImportRules(states)

	enabled := map[string]bool{}
	for _, rule := range b.Rules() {
		enabled[rule.Name] = rule.Enabled
	}
	assert.False(t, enabled[RuleConfidenceAnomaly])
	assert.True(t, enabled[RuleDuplicateEntity])
	assert.True(t, enabled[RuleOrphanedRelationship])

	// States naming no registered rule are dropped, not resurrected.
	b.ImportRules([]*types.RuleState{{Name: "ghost_rule", Enabled: true}})
	assert.Len(t, b.Rules(), 5)
}

func TestCustomRuleAndPanicIsolation(t *testing.T) {
	a := NewAuditorWithInterval(0)

	a.AddRule(&Rule{
		Name:    "always_panics",
		Enabled: true,
		Check: func(_ []*types.Entity, _ []*types.Relationship, _ []*types.Fact) []types.Inconsistency {
			panic("boom")
		},
	})
	a.AddRule(&Rule{
		Name:    "flag_everything",
		Enabled: true,
		Check: func(entities []*types.Entity, _ []*types.Relationship, _ []*types.Fact) []types.Inconsistency {
			var out []types.Inconsistency
			for _, e := range entities {
				out = append(out, types.Inconsistency{
					Type:        types.InconsistencyMissingEntity,
					RecordIDs:   []string{e.ID},
					Description: "flagged by custom rule",
					Severity:    types.SeverityLow,
				})
			}
			return out
		},
	})

	findings := a.CheckConsistency([]*types.Entity{auditEntity("e1", types.EntityProduct, "A", 0.9)}, nil, nil)

	// The panicking rule is skipped; the custom rule after it still runs.
	custom := findByType(findings, types.InconsistencyMissingEntity)
	require.Len(t, custom, 1)
	assert.Equal(t, []string{"e1"}, custom[0].RecordIDs)
}
