package query

import (
	"net/url"
	"sort"
	"strings"

	"github.com/scoutdb/scoutdb/pkg/types"
)

const defaultSimilarityLimit = 10

// Similarity weights. Name agreement dominates, property overlap refines,
// shared source domain breaks ties between otherwise-equal candidates.
const (
	weightNameExact   = 0.4
	weightNamePartial = 0.2
	weightProperties  = 0.4
	weightDomain      = 0.2
)

// ScoredEntity pairs an entity with its similarity score against a reference
// entity.
type ScoredEntity struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"score"`
}

// FindSimilarEntities scores all same-type entities against the given entity
// by a blended heuristic: exact or partial case-insensitive name match,
// proportion of shared property keys holding equal values, and same source
// domain. Results are sorted descending by score and capped at limit.
//
// This is the in-memory heuristic similarity; it deliberately uses no vector
// math. Semantic similarity search belongs to the durable backing store.
func (e *Engine) FindSimilarEntities(id string, limit int) []ScoredEntity {
	reference := e.store.GetEntity(id)
	if reference == nil {
		return []ScoredEntity{}
	}
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}

	refName := strings.ToLower(reference.Name)
	refDomain := sourceDomain(reference.SourceURL)

	var scored []ScoredEntity
	for _, candidate := range e.store.GetEntitiesByType(reference.Type) {
		if candidate.ID == reference.ID {
			continue
		}

		var score float64
		candidateName := strings.ToLower(candidate.Name)
		switch {
		case candidateName == refName:
			score += weightNameExact
		case candidateName != "" && refName != "" &&
			(strings.Contains(candidateName, refName) || strings.Contains(refName, candidateName)):
			score += weightNamePartial
		}

		score += weightProperties * propertyOverlap(reference.Properties, candidate.Properties)

		if refDomain != "" && sourceDomain(candidate.SourceURL) == refDomain {
			score += weightDomain
		}

		if score > 0 {
			scored = append(scored, ScoredEntity{Entity: candidate, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Entity.ID < scored[j].Entity.ID
		}
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// propertyOverlap returns the proportion of the combined key set on which the
// two property maps agree exactly.
func propertyOverlap(a, b map[string]types.Value) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}

	matching := 0
	for k, av := range a {
		if bv, ok := b[k]; ok && av.Equal(bv) {
			matching++
		}
	}
	return float64(matching) / float64(len(union))
}

// sourceDomain extracts the host from a source URL, empty if unparseable.
func sourceDomain(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
