// Package store provides the authoritative in-memory record set for the world
// model: entities, relationships, and facts, each kept under a primary map
// plus a family of secondary indexes for multi-path lookup.
//
// The store performs no locking of its own. It is a synchronous, in-memory
// computation layer that assumes exclusive access during each call; the
// owning world model serialises mutations behind a single-writer lock.
package store

import (
	"sort"
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// dayBucket is the granularity of the time-range indexes. Range queries touch
// only the buckets overlapping the window instead of scanning every record.
const dayBucketFormat = "2006-01-02"

// Store owns the canonical entity/relationship/fact record set and its
// secondary indexes. Every mutation updates the primary map and the indexes
// together, never separately, so each record present in a primary map has
// exactly one entry in each applicable index and every indexed ID resolves
// back to a primary record.
type Store struct {
	entities      map[string]*types.Entity
	relationships map[string]*types.Relationship
	facts         map[string]*types.Fact

	// Entity indexes
	entityByType   map[string]map[string]struct{}
	entityByName   map[string]map[string]struct{} // Lowercased name
	entityBySource map[string]map[string]struct{}
	entityByDay    map[string]map[string]struct{} // ExtractedAt day bucket

	// Relationship indexes
	relByType   map[string]map[string]struct{}
	relBySource map[string]map[string]struct{} // Source entity ID
	relByTarget map[string]map[string]struct{} // Target entity ID
	relByDay    map[string]map[string]struct{}

	// Fact indexes
	factBySubject   map[string]map[string]struct{}
	factByPredicate map[string]map[string]struct{}
	factByObject    map[string]map[string]struct{} // Canonical object key
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.entities = make(map[string]*types.Entity)
	s.relationships = make(map[string]*types.Relationship)
	s.facts = make(map[string]*types.Fact)

	s.entityByType = make(map[string]map[string]struct{})
	s.entityByName = make(map[string]map[string]struct{})
	s.entityBySource = make(map[string]map[string]struct{})
	s.entityByDay = make(map[string]map[string]struct{})

	s.relByType = make(map[string]map[string]struct{})
	s.relBySource = make(map[string]map[string]struct{})
	s.relByTarget = make(map[string]map[string]struct{})
	s.relByDay = make(map[string]map[string]struct{})

	s.factBySubject = make(map[string]map[string]struct{})
	s.factByPredicate = make(map[string]map[string]struct{})
	s.factByObject = make(map[string]map[string]struct{})
}

// indexAdd inserts id into the bucket for key, creating the bucket on demand.
func indexAdd(idx map[string]map[string]struct{}, key, id string) {
	bucket, ok := idx[key]
	if !ok {
		bucket = make(map[string]struct{})
		idx[key] = bucket
	}
	bucket[id] = struct{}{}
}

// indexRemove deletes id from the bucket for key and prunes the bucket when it
// becomes empty, so index maps shrink with the record set.
func indexRemove(idx map[string]map[string]struct{}, key, id string) {
	bucket, ok := idx[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(idx, key)
	}
}

// sortedIDs returns the bucket's members in a stable order so that lookups
// (and pagination over them) are deterministic across calls.
func sortedIDs(bucket map[string]struct{}) []string {
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// dayBuckets enumerates the day-bucket keys overlapping [from, to].
func dayBuckets(from, to time.Time) []string {
	if to.Before(from) {
		return nil
	}
	var keys []string
	day := from.UTC().Truncate(24 * time.Hour)
	last := to.UTC().Truncate(24 * time.Hour)
	for !day.After(last) {
		keys = append(keys, day.Format(dayBucketFormat))
		day = day.Add(24 * time.Hour)
	}
	return keys
}

// Export returns a snapshot of the full record set. Events and inconsistencies
// belong to the change log; the world model fills them in.
func (s *Store) Export() *types.Snapshot {
	snap := &types.Snapshot{
		Entities:      make([]*types.Entity, 0, len(s.entities)),
		Relationships: make([]*types.Relationship, 0, len(s.relationships)),
		Facts:         make([]*types.Fact, 0, len(s.facts)),
		ExportedAt:    time.Now().UTC(),
	}
	for _, id := range sortedKeys(s.entities) {
		snap.Entities = append(snap.Entities, s.entities[id])
	}
	for _, id := range sortedKeys(s.relationships) {
		snap.Relationships = append(snap.Relationships, s.relationships[id])
	}
	for _, id := range sortedKeys(s.facts) {
		snap.Facts = append(snap.Facts, s.facts[id])
	}
	return snap
}

// Import replaces the store's contents with the snapshot's records. Existing
// state is cleared first; there are no merge semantics.
func (s *Store) Import(snap *types.Snapshot) {
	s.reset()
	if snap == nil {
		return
	}
	for _, e := range snap.Entities {
		s.AddEntity(e)
	}
	for _, r := range snap.Relationships {
		s.AddRelationship(r)
	}
	for _, f := range snap.Facts {
		s.AddFact(f)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Statistics reports record counts, per-type distributions, and index sizes.
// It is a health/diagnostic surface, not a correctness one.
type Statistics struct {
	EntityCount         int            `json:"entity_count"`
	RelationshipCount   int            `json:"relationship_count"`
	FactCount           int            `json:"fact_count"`
	EntitiesByType      map[string]int `json:"entities_by_type"`
	RelationshipsByType map[string]int `json:"relationships_by_type"`
	FactsByPredicate    map[string]int `json:"facts_by_predicate"`
	IndexBuckets        map[string]int `json:"index_buckets"` // Bucket count per index
}

// Statistics computes current store diagnostics.
func (s *Store) Statistics() Statistics {
	stats := Statistics{
		EntityCount:         len(s.entities),
		RelationshipCount:   len(s.relationships),
		FactCount:           len(s.facts),
		EntitiesByType:      make(map[string]int),
		RelationshipsByType: make(map[string]int),
		FactsByPredicate:    make(map[string]int),
		IndexBuckets:        make(map[string]int),
	}
	for key, bucket := range s.entityByType {
		stats.EntitiesByType[key] = len(bucket)
	}
	for key, bucket := range s.relByType {
		stats.RelationshipsByType[key] = len(bucket)
	}
	for key, bucket := range s.factByPredicate {
		stats.FactsByPredicate[key] = len(bucket)
	}
	stats.IndexBuckets["entity_by_type"] = len(s.entityByType)
	stats.IndexBuckets["entity_by_name"] = len(s.entityByName)
	stats.IndexBuckets["entity_by_source"] = len(s.entityBySource)
	stats.IndexBuckets["entity_by_day"] = len(s.entityByDay)
	stats.IndexBuckets["relationship_by_type"] = len(s.relByType)
	stats.IndexBuckets["relationship_by_source"] = len(s.relBySource)
	stats.IndexBuckets["relationship_by_target"] = len(s.relByTarget)
	stats.IndexBuckets["relationship_by_day"] = len(s.relByDay)
	stats.IndexBuckets["fact_by_subject"] = len(s.factBySubject)
	stats.IndexBuckets["fact_by_predicate"] = len(s.factByPredicate)
	stats.IndexBuckets["fact_by_object"] = len(s.factByObject)
	return stats
}
