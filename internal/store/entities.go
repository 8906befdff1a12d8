package store

import (
	"strings"
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func (s *Store) indexEntity(e *types.Entity) {
	indexAdd(s.entityByType, string(e.Type), e.ID)
	indexAdd(s.entityByName, strings.ToLower(e.Name), e.ID)
	if e.SourceURL != "" {
		indexAdd(s.entityBySource, e.SourceURL, e.ID)
	}
	indexAdd(s.entityByDay, e.ExtractedAt.UTC().Format(dayBucketFormat), e.ID)
}

func (s *Store) unindexEntity(e *types.Entity) {
	indexRemove(s.entityByType, string(e.Type), e.ID)
	indexRemove(s.entityByName, strings.ToLower(e.Name), e.ID)
	if e.SourceURL != "" {
		indexRemove(s.entityBySource, e.SourceURL, e.ID)
	}
	indexRemove(s.entityByDay, e.ExtractedAt.UTC().Format(dayBucketFormat), e.ID)
}

// AddEntity upserts an entity and returns the previous value, or nil if the
// ID was new. On overwrite the old index entries are removed before the new
// record is indexed, so only the changed entity's index entries are rebuilt.
// AddEntity cannot fail for well-formed input.
func (s *Store) AddEntity(e *types.Entity) *types.Entity {
	prev := s.entities[e.ID]
	if prev != nil {
		s.unindexEntity(prev)
	}
	s.entities[e.ID] = e
	s.indexEntity(e)
	return prev
}

// GetEntity returns the entity with the given ID, or nil.
func (s *Store) GetEntity(id string) *types.Entity {
	return s.entities[id]
}

// RemoveEntity deletes an entity and prunes all of its index entries.
// Returns false if the ID is unknown.
func (s *Store) RemoveEntity(id string) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	s.unindexEntity(e)
	delete(s.entities, id)
	return true
}

// collectEntities resolves a bucket to records in stable ID order.
func (s *Store) collectEntities(bucket map[string]struct{}) []*types.Entity {
	out := make([]*types.Entity, 0, len(bucket))
	for _, id := range sortedIDs(bucket) {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// GetEntitiesByType returns all entities of the given type.
// The returned slice is current as of this call; callers must not assume it
// stays valid across a subsequent write.
func (s *Store) GetEntitiesByType(t types.EntityType) []*types.Entity {
	return s.collectEntities(s.entityByType[string(t)])
}

// GetEntitiesByName returns all entities whose name matches case-insensitively.
func (s *Store) GetEntitiesByName(name string) []*types.Entity {
	return s.collectEntities(s.entityByName[strings.ToLower(name)])
}

// GetEntitiesBySource returns all entities extracted from the given URL.
func (s *Store) GetEntitiesBySource(sourceURL string) []*types.Entity {
	return s.collectEntities(s.entityBySource[sourceURL])
}

// GetEntitiesByTimeRange returns entities whose ExtractedAt lies in [from, to].
// Only the day buckets overlapping the window are touched; the exact timestamp
// filter is applied within those buckets.
func (s *Store) GetEntitiesByTimeRange(from, to time.Time) []*types.Entity {
	var out []*types.Entity
	for _, key := range dayBuckets(from, to) {
		for _, id := range sortedIDs(s.entityByDay[key]) {
			e := s.entities[id]
			if e == nil {
				continue
			}
			if e.ExtractedAt.Before(from) || e.ExtractedAt.After(to) {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

// AllEntities returns every entity in stable ID order.
func (s *Store) AllEntities() []*types.Entity {
	out := make([]*types.Entity, 0, len(s.entities))
	for _, id := range sortedKeys(s.entities) {
		out = append(out, s.entities[id])
	}
	return out
}

// EntityCount returns the number of stored entities.
func (s *Store) EntityCount() int {
	return len(s.entities)
}
