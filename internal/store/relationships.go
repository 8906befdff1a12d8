package store

import (
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func (s *Store) indexRelationship(r *types.Relationship) {
	indexAdd(s.relByType, string(r.Type), r.ID)
	indexAdd(s.relBySource, r.Source, r.ID)
	indexAdd(s.relByTarget, r.Target, r.ID)
	indexAdd(s.relByDay, r.ExtractedAt.UTC().Format(dayBucketFormat), r.ID)
}

func (s *Store) unindexRelationship(r *types.Relationship) {
	indexRemove(s.relByType, string(r.Type), r.ID)
	indexRemove(s.relBySource, r.Source, r.ID)
	indexRemove(s.relByTarget, r.Target, r.ID)
	indexRemove(s.relByDay, r.ExtractedAt.UTC().Format(dayBucketFormat), r.ID)
}

// AddRelationship upserts a relationship and returns the previous value, or
// nil if the ID was new. Endpoint IDs are not checked against the entity set:
// dangling references are expected transiently and caught by the auditor.
func (s *Store) AddRelationship(r *types.Relationship) *types.Relationship {
	prev := s.relationships[r.ID]
	if prev != nil {
		s.unindexRelationship(prev)
	}
	s.relationships[r.ID] = r
	s.indexRelationship(r)
	return prev
}

// GetRelationship returns the relationship with the given ID, or nil.
func (s *Store) GetRelationship(id string) *types.Relationship {
	return s.relationships[id]
}

// RemoveRelationship deletes a relationship and prunes its index entries.
// Returns false if the ID is unknown.
func (s *Store) RemoveRelationship(id string) bool {
	r, ok := s.relationships[id]
	if !ok {
		return false
	}
	s.unindexRelationship(r)
	delete(s.relationships, id)
	return true
}

func (s *Store) collectRelationships(bucket map[string]struct{}) []*types.Relationship {
	out := make([]*types.Relationship, 0, len(bucket))
	for _, id := range sortedIDs(bucket) {
		if r, ok := s.relationships[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// GetRelationshipsByType returns all relationships of the given type.
func (s *Store) GetRelationshipsByType(t types.RelationType) []*types.Relationship {
	return s.collectRelationships(s.relByType[string(t)])
}

// GetRelationshipsBySource returns all relationships whose source is the
// given entity ID.
func (s *Store) GetRelationshipsBySource(entityID string) []*types.Relationship {
	return s.collectRelationships(s.relBySource[entityID])
}

// GetRelationshipsByTarget returns all relationships whose target is the
// given entity ID.
func (s *Store) GetRelationshipsByTarget(entityID string) []*types.Relationship {
	return s.collectRelationships(s.relByTarget[entityID])
}

// GetRelationshipsForEntity returns every relationship touching the entity as
// source or target, deduplicated by relationship ID.
func (s *Store) GetRelationshipsForEntity(entityID string) []*types.Relationship {
	merged := make(map[string]struct{})
	for id := range s.relBySource[entityID] {
		merged[id] = struct{}{}
	}
	for id := range s.relByTarget[entityID] {
		merged[id] = struct{}{}
	}
	return s.collectRelationships(merged)
}

// GetRelationshipsByTimeRange returns relationships whose ExtractedAt lies in
// [from, to], touching only the overlapping day buckets.
func (s *Store) GetRelationshipsByTimeRange(from, to time.Time) []*types.Relationship {
	var out []*types.Relationship
	for _, key := range dayBuckets(from, to) {
		for _, id := range sortedIDs(s.relByDay[key]) {
			r := s.relationships[id]
			if r == nil {
				continue
			}
			if r.ExtractedAt.Before(from) || r.ExtractedAt.After(to) {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}

// AllRelationships returns every relationship in stable ID order.
func (s *Store) AllRelationships() []*types.Relationship {
	out := make([]*types.Relationship, 0, len(s.relationships))
	for _, id := range sortedKeys(s.relationships) {
		out = append(out, s.relationships[id])
	}
	return out
}

// RelationshipCount returns the number of stored relationships.
func (s *Store) RelationshipCount() int {
	return len(s.relationships)
}
