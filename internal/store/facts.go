package store

import (
	"github.com/scoutdb/scoutdb/pkg/types"
)

func (s *Store) indexFact(f *types.Fact) {
	indexAdd(s.factBySubject, f.Subject, f.ID)
	indexAdd(s.factByPredicate, f.Predicate, f.ID)
	indexAdd(s.factByObject, f.ObjectKey(), f.ID)
}

func (s *Store) unindexFact(f *types.Fact) {
	indexRemove(s.factBySubject, f.Subject, f.ID)
	indexRemove(s.factByPredicate, f.Predicate, f.ID)
	indexRemove(s.factByObject, f.ObjectKey(), f.ID)
}

// AddFact upserts a fact and returns the previous value, or nil if the ID
// was new.
func (s *Store) AddFact(f *types.Fact) *types.Fact {
	prev := s.facts[f.ID]
	if prev != nil {
		s.unindexFact(prev)
	}
	s.facts[f.ID] = f
	s.indexFact(f)
	return prev
}

// GetFact returns the fact with the given ID, or nil.
func (s *Store) GetFact(id string) *types.Fact {
	return s.facts[id]
}

// RemoveFact deletes a fact and prunes its index entries. Returns false if
// the ID is unknown.
func (s *Store) RemoveFact(id string) bool {
	f, ok := s.facts[id]
	if !ok {
		return false
	}
	s.unindexFact(f)
	delete(s.facts, id)
	return true
}

func (s *Store) collectFacts(bucket map[string]struct{}) []*types.Fact {
	out := make([]*types.Fact, 0, len(bucket))
	for _, id := range sortedIDs(bucket) {
		if f, ok := s.facts[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// GetFactsBySubject returns all facts about the given entity ID.
func (s *Store) GetFactsBySubject(entityID string) []*types.Fact {
	return s.collectFacts(s.factBySubject[entityID])
}

// GetFactsByPredicate returns all facts carrying the given predicate.
func (s *Store) GetFactsByPredicate(predicate string) []*types.Fact {
	return s.collectFacts(s.factByPredicate[predicate])
}

// GetFactsByObject returns all facts whose object's canonical key matches.
func (s *Store) GetFactsByObject(objectKey string) []*types.Fact {
	return s.collectFacts(s.factByObject[objectKey])
}

// AllFacts returns every fact in stable ID order.
func (s *Store) AllFacts() []*types.Fact {
	out := make([]*types.Fact, 0, len(s.facts))
	for _, id := range sortedKeys(s.facts) {
		out = append(out, s.facts[id])
	}
	return out
}

// FactCount returns the number of stored facts.
func (s *Store) FactCount() int {
	return len(s.facts)
}
