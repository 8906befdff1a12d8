package query

import (
	"sort"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// Traversal depth defaults mirror the rest of the engine's best-effort
// posture: a missing or absurd MaxDepth is clamped, never rejected.
const (
	defaultMaxDepth = 3
	maxMaxDepth     = 10
)

// Traverse performs bounded breadth-first traversal from the requested start
// entity. MaxDepth counts edges traversed; visited-node tracking guarantees
// no node is expanded more than once. The recorded paths are the leaves of
// the BFS expansion tree (first-discovery paths plus partial paths cut off at
// MaxDepth), not an enumeration of all simple paths.
//
// Neighbors whose entity record is missing (dangling relationship endpoints)
// are skipped entirely; the auditor, not the traversal, reports those.
func (e *Engine) Traverse(spec *types.TraversalSpec) *types.TraversalResult {
	result := &types.TraversalResult{
		Nodes: []*types.Entity{},
		Edges: []*types.Relationship{},
		Paths: [][]string{},
	}

	start := e.store.GetEntity(spec.StartID)
	if start == nil {
		return result
	}

	maxDepth := spec.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if maxDepth > maxMaxDepth {
		maxDepth = maxMaxDepth
	}

	direction := spec.Direction
	if direction == "" {
		direction = types.DirectionOutgoing
	}

	var allowed map[types.RelationType]struct{}
	if len(spec.RelationshipTypes) > 0 {
		allowed = make(map[types.RelationType]struct{}, len(spec.RelationshipTypes))
		for _, t := range spec.RelationshipTypes {
			allowed[t] = struct{}{}
		}
	}

	type queueItem struct {
		id    string
		depth int
		path  []string
	}

	nodes := map[string]*types.Entity{start.ID: start}
	edges := make(map[string]*types.Relationship)
	visited := map[string]struct{}{start.ID: {}}

	queue := []queueItem{{id: start.ID, depth: 0, path: []string{start.ID}}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			if len(current.path) > 1 {
				result.Paths = append(result.Paths, current.path)
			}
			continue
		}

		extended := false
		for _, step := range e.neighborSteps(current.id, direction, allowed) {
			neighbor := e.store.GetEntity(step.neighborID)
			if neighbor == nil {
				continue
			}
			edges[step.edge.ID] = step.edge
			nodes[neighbor.ID] = neighbor
			if _, ok := visited[neighbor.ID]; ok {
				continue
			}
			visited[neighbor.ID] = struct{}{}
			path := make([]string, len(current.path), len(current.path)+1)
			copy(path, current.path)
			queue = append(queue, queueItem{id: neighbor.ID, depth: current.depth + 1, path: append(path, neighbor.ID)})
			extended = true
		}

		// Dead end inside the depth bound: the first-discovery path to this
		// node is final, record it.
		if !extended && len(current.path) > 1 {
			result.Paths = append(result.Paths, current.path)
		}
	}

	for _, id := range sortedMapKeys(nodes) {
		result.Nodes = append(result.Nodes, nodes[id])
	}
	for _, id := range sortedMapKeys(edges) {
		result.Edges = append(result.Edges, edges[id])
	}
	return result
}

type traversalStep struct {
	edge       *types.Relationship
	neighborID string
}

// neighborSteps enumerates the edges leaving the node in the requested
// direction, filtered by the allowed relationship type set.
func (e *Engine) neighborSteps(id string, direction types.Direction, allowed map[types.RelationType]struct{}) []traversalStep {
	var steps []traversalStep

	match := func(rel *types.Relationship) bool {
		if allowed == nil {
			return true
		}
		_, ok := allowed[rel.Type]
		return ok
	}

	if direction == types.DirectionOutgoing || direction == types.DirectionBoth {
		for _, rel := range e.store.GetRelationshipsBySource(id) {
			if match(rel) {
				steps = append(steps, traversalStep{edge: rel, neighborID: rel.Target})
			}
		}
	}
	if direction == types.DirectionIncoming || direction == types.DirectionBoth {
		for _, rel := range e.store.GetRelationshipsByTarget(id) {
			if !match(rel) {
				continue
			}
			if direction == types.DirectionBoth && rel.Source == id && rel.Target == id {
				continue // Self-loop already produced by the outgoing pass.
			}
			steps = append(steps, traversalStep{edge: rel, neighborID: rel.Source})
		}
	}
	return steps
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindEntityByPath walks the relationship-type sequence exactly, one outgoing
// hop per element, and returns all entities reachable by that exact typed
// path. It is not a general reachability query: a three-element sequence
// means exactly three hops.
func (e *Engine) FindEntityByPath(startID string, relationshipTypes []types.RelationType) []*types.Entity {
	if e.store.GetEntity(startID) == nil {
		return []*types.Entity{}
	}

	frontier := map[string]struct{}{startID: {}}
	for _, relType := range relationshipTypes {
		next := make(map[string]struct{})
		for id := range frontier {
			for _, rel := range e.store.GetRelationshipsBySource(id) {
				if rel.Type == relType {
					next[rel.Target] = struct{}{}
				}
			}
		}
		if len(next) == 0 {
			return []*types.Entity{}
		}
		frontier = next
	}

	out := make([]*types.Entity, 0, len(frontier))
	for _, id := range sortedMapKeys(frontier) {
		if entity := e.store.GetEntity(id); entity != nil {
			out = append(out, entity)
		}
	}
	return out
}
