// Package query provides the read side of the world model: filtered lookups
// over the store's indexes, bounded graph traversal, sorting, pagination,
// similarity scoring, and a short-lived result cache.
//
// The engine is stateless with respect to the store's data; its only state is
// the cache. Malformed query sections degrade silently instead of erroring:
// queries are untrusted data shaped by upstream heuristics, not program logic.
package query

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scoutdb/scoutdb/internal/store"
	"github.com/scoutdb/scoutdb/pkg/types"
)

// DefaultCacheTTL is how long a query result stays servable from cache.
// Entries are never invalidated eagerly on write; staleness within the window
// is an accepted throughput tradeoff that callers must expect.
const DefaultCacheTTL = 60 * time.Second

const defaultCacheSize = 512

// Engine executes structured queries against the store.
type Engine struct {
	store *store.Store
	cache *expirable.LRU[string, *types.WorldModelResponse]
}

// New creates a query engine with the default cache TTL.
func New(s *store.Store) *Engine {
	return NewWithTTL(s, DefaultCacheTTL)
}

// NewWithTTL creates a query engine with a custom cache TTL. A TTL of zero
// disables caching.
func NewWithTTL(s *store.Store, ttl time.Duration) *Engine {
	e := &Engine{store: s}
	if ttl > 0 {
		e.cache = expirable.NewLRU[string, *types.WorldModelResponse](defaultCacheSize, nil, ttl)
	}
	return e
}

// Query executes a structured query. Each filter section is independently
// optional; absent sections yield empty result lists. Results are cached for
// the TTL window keyed by the full serialized query; a hit short-circuits all
// lookup and traversal work.
func (e *Engine) Query(q *types.WorldModelQuery) *types.WorldModelResponse {
	start := time.Now()

	key := cacheKey(q)
	if e.cache != nil && key != "" {
		if cached, ok := e.cache.Get(key); ok {
			hit := *cached
			hit.Cached = true
			return &hit
		}
	}

	resp := &types.WorldModelResponse{
		Entities:      []*types.Entity{},
		Relationships: []*types.Relationship{},
		Facts:         []*types.Fact{},
	}

	if q.Entities != nil {
		resp.Entities = e.findEntities(q.Entities, q.TimeRange)
	}
	if q.Relationships != nil {
		resp.Relationships = e.findRelationships(q.Relationships, q.TimeRange)
	}
	if q.Facts != nil {
		resp.Facts = e.findFacts(q.Facts)
	}
	if q.Traversal != nil {
		resp.Graph = e.Traverse(q.Traversal)
	}

	sortEntities(resp.Entities, q.Sort)
	sortRelationships(resp.Relationships, q.Sort)
	sortFacts(resp.Facts, q.Sort)

	resp.TotalEntities = len(resp.Entities)
	resp.TotalRels = len(resp.Relationships)
	resp.TotalFacts = len(resp.Facts)

	resp.Entities = paginate(resp.Entities, q.Offset, q.Limit)
	resp.Relationships = paginate(resp.Relationships, q.Offset, q.Limit)
	resp.Facts = paginate(resp.Facts, q.Offset, q.Limit)

	// Coarse signal only: pre-pagination counts against the limit, not a
	// precise remaining count.
	if q.Limit > 0 {
		resp.HasMore = resp.TotalEntities > q.Limit ||
			resp.TotalRels > q.Limit ||
			resp.TotalFacts > q.Limit
	}

	resp.QueryTime = time.Since(start)

	if e.cache != nil && key != "" {
		e.cache.Add(key, resp)
	}
	return resp
}

// cacheKey serializes the query. An unserializable query (cannot happen with
// the plain types involved, but cheap to guard) skips the cache.
func cacheKey(q *types.WorldModelQuery) string {
	data, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(data)
}

// findEntities picks the narrowest index the filter allows, falling back to a
// scan over every type partition when no indexed field is present, then
// applies the remaining filter fields exactly.
func (e *Engine) findEntities(f *types.EntityFilter, tr *types.TimeRange) []*types.Entity {
	var candidates []*types.Entity
	switch {
	case f.Type != "":
		candidates = e.store.GetEntitiesByType(f.Type)
	case f.Name != "":
		candidates = e.store.GetEntitiesByName(f.Name)
	case f.Source != "":
		candidates = e.store.GetEntitiesBySource(f.Source)
	default:
		// Slow path: no indexed field, scan all type partitions.
		for _, t := range types.AllEntityTypes {
			candidates = append(candidates, e.store.GetEntitiesByType(t)...)
		}
	}

	out := make([]*types.Entity, 0, len(candidates))
	for _, entity := range candidates {
		if f.Type != "" && entity.Type != f.Type {
			continue
		}
		if f.Name != "" && !strings.EqualFold(entity.Name, f.Name) {
			continue
		}
		if f.Source != "" && entity.SourceURL != f.Source {
			continue
		}
		if f.MinConfidence > 0 && entity.Confidence < f.MinConfidence {
			continue
		}
		if tr != nil && (entity.ExtractedAt.Before(tr.From) || entity.ExtractedAt.After(tr.To)) {
			continue
		}
		out = append(out, entity)
	}
	return out
}

func (e *Engine) findRelationships(f *types.RelationshipFilter, tr *types.TimeRange) []*types.Relationship {
	var candidates []*types.Relationship
	switch {
	case f.Type != "":
		candidates = e.store.GetRelationshipsByType(f.Type)
	case f.Source != "":
		candidates = e.store.GetRelationshipsBySource(f.Source)
	case f.Target != "":
		candidates = e.store.GetRelationshipsByTarget(f.Target)
	default:
		for _, t := range types.AllRelationTypes {
			candidates = append(candidates, e.store.GetRelationshipsByType(t)...)
		}
	}

	out := make([]*types.Relationship, 0, len(candidates))
	for _, rel := range candidates {
		if f.Type != "" && rel.Type != f.Type {
			continue
		}
		if f.Source != "" && rel.Source != f.Source {
			continue
		}
		if f.Target != "" && rel.Target != f.Target {
			continue
		}
		if tr != nil && (rel.ExtractedAt.Before(tr.From) || rel.ExtractedAt.After(tr.To)) {
			continue
		}
		out = append(out, rel)
	}
	return out
}

// findFacts requires at least one indexed field. Facts have no type partition
// to scan from, so a fully-unindexed fact filter yields an empty result by
// policy rather than a full scan.
func (e *Engine) findFacts(f *types.FactFilter) []*types.Fact {
	var candidates []*types.Fact
	switch {
	case f.Subject != "":
		candidates = e.store.GetFactsBySubject(f.Subject)
	case f.Predicate != "":
		candidates = e.store.GetFactsByPredicate(f.Predicate)
	case f.Object != "":
		candidates = e.store.GetFactsByObject(f.Object)
	default:
		return []*types.Fact{}
	}

	out := make([]*types.Fact, 0, len(candidates))
	for _, fact := range candidates {
		if f.Subject != "" && fact.Subject != f.Subject {
			continue
		}
		if f.Predicate != "" && fact.Predicate != f.Predicate {
			continue
		}
		if f.Object != "" && fact.ObjectKey() != f.Object {
			continue
		}
		out = append(out, fact)
	}
	return out
}

func sortOrder(s *types.SortSpec) bool {
	return s.Order == "desc"
}

func sortEntities(entities []*types.Entity, s *types.SortSpec) {
	if s == nil {
		return
	}
	desc := sortOrder(s)
	var less func(a, b *types.Entity) bool
	switch s.Field {
	case "extracted_at":
		less = func(a, b *types.Entity) bool { return a.ExtractedAt.Before(b.ExtractedAt) }
	case "last_updated":
		less = func(a, b *types.Entity) bool { return a.LastUpdated.Before(b.LastUpdated) }
	case "confidence":
		less = func(a, b *types.Entity) bool { return a.Confidence < b.Confidence }
	case "name":
		less = func(a, b *types.Entity) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		return // Unknown sort field leaves the input order untouched.
	}
	sort.SliceStable(entities, func(i, j int) bool {
		if desc {
			return less(entities[j], entities[i])
		}
		return less(entities[i], entities[j])
	})
}

func sortRelationships(rels []*types.Relationship, s *types.SortSpec) {
	if s == nil {
		return
	}
	desc := sortOrder(s)
	var less func(a, b *types.Relationship) bool
	switch s.Field {
	case "extracted_at":
		less = func(a, b *types.Relationship) bool { return a.ExtractedAt.Before(b.ExtractedAt) }
	case "confidence":
		less = func(a, b *types.Relationship) bool { return a.Confidence < b.Confidence }
	default:
		return
	}
	sort.SliceStable(rels, func(i, j int) bool {
		if desc {
			return less(rels[j], rels[i])
		}
		return less(rels[i], rels[j])
	})
}

func sortFacts(facts []*types.Fact, s *types.SortSpec) {
	if s == nil {
		return
	}
	desc := sortOrder(s)
	var less func(a, b *types.Fact) bool
	switch s.Field {
	case "extracted_at":
		less = func(a, b *types.Fact) bool { return a.ExtractedAt.Before(b.ExtractedAt) }
	case "confidence":
		less = func(a, b *types.Fact) bool { return a.Confidence < b.Confidence }
	default:
		return
	}
	sort.SliceStable(facts, func(i, j int) bool {
		if desc {
			return less(facts[j], facts[i])
		}
		return less(facts[i], facts[j])
	})
}

// paginate applies offset/limit to one record kind independently.
func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
