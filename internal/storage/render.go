package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// RenderEntity produces the free-text content for an entity document. The
// rendering feeds both embedding generation and plain text search, so it
// spells everything out in words rather than JSON.
func RenderEntity(e *types.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", e.Type, e.Name)
	if len(e.Properties) > 0 {
		keys := make([]string, 0, len(e.Properties))
		for k := range e.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Properties[k].Key()))
		}
		fmt.Fprintf(&b, " with %s", strings.Join(parts, ", "))
	}
	if e.SourceURL != "" {
		fmt.Fprintf(&b, " from %s", e.SourceURL)
	}
	return b.String()
}

// RenderRelationship produces the free-text content for a relationship
// document.
func RenderRelationship(r *types.Relationship) string {
	s := fmt.Sprintf("%s %s %s", r.Source, r.Type, r.Target)
	if r.SourceURL != "" {
		s += " from " + r.SourceURL
	}
	return s
}

// RenderFact produces the free-text content for a fact document.
func RenderFact(f *types.Fact) string {
	s := fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object.Key())
	if f.SourceURL != "" {
		s += " from " + f.SourceURL
	}
	return s
}
