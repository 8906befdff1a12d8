package worldmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/scoutdb/scoutdb/internal/storage"
	"github.com/scoutdb/scoutdb/pkg/types"
)

const contextRecordLimit = 20

// BuildContext assembles a text block of relevant knowledge for an external
// planner: entities, relationships, and facts matching the domain and goal.
// With a durable mirror attached the lookup goes through the document store,
// semantic-search enabled, so vector-capable backends surface records that
// match the goal by meaning rather than by substring. Without a mirror it
// degrades to substring matching over the in-memory store.
func (w *WorldModel) BuildContext(ctx context.Context, domain, goal string) (string, error) {
	if w.mirror == nil {
		return w.buildLocalContext(domain, goal), nil
	}

	docs, err := w.mirror.QueryRecords(ctx, storage.RecordQuery{
		Domain:   domain,
		Goal:     goal,
		Semantic: true,
		Limit:    contextRecordLimit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to query backing store: %w", err)
	}

	var entities, rels, facts []string
	for _, doc := range docs {
		switch doc.Kind {
		case types.KindEntity:
			entities = append(entities, doc.Content)
		case types.KindRelationship:
			rels = append(rels, doc.Content)
		case types.KindFact:
			facts = append(facts, doc.Content)
		}
	}
	return renderContext(domain, goal, entities, rels, facts), nil
}

// buildLocalContext matches the in-memory store by substring over the same
// text renderings the document store indexes.
func (w *WorldModel) buildLocalContext(domain, goal string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	needle := strings.ToLower(goal)
	match := func(content, sourceURL string) bool {
		if domain != "" && domainOf(sourceURL) != strings.ToLower(domain) {
			return false
		}
		return needle == "" || strings.Contains(strings.ToLower(content), needle)
	}

	var entities, rels, facts []string
	for _, e := range w.store.AllEntities() {
		if content := storage.RenderEntity(e); match(content, e.SourceURL) {
			entities = append(entities, content)
		}
		if len(entities) == contextRecordLimit {
			break
		}
	}
	for _, r := range w.store.AllRelationships() {
		if content := storage.RenderRelationship(r); match(content, r.SourceURL) {
			rels = append(rels, content)
		}
		if len(rels) == contextRecordLimit {
			break
		}
	}
	for _, f := range w.store.AllFacts() {
		if content := storage.RenderFact(f); match(content, f.SourceURL) {
			facts = append(facts, content)
		}
		if len(facts) == contextRecordLimit {
			break
		}
	}
	return renderContext(domain, goal, entities, rels, facts)
}

func renderContext(domain, goal string, entities, rels, facts []string) string {
	var b strings.Builder
	b.WriteString("Known information")
	if domain != "" {
		fmt.Fprintf(&b, " about %s", domain)
	}
	if goal != "" {
		fmt.Fprintf(&b, " relevant to %q", goal)
	}
	b.WriteString(":\n")

	writeSection := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString("\n" + title + ":\n")
		for _, line := range lines {
			b.WriteString("- " + line + "\n")
		}
	}
	writeSection("Entities", entities)
	writeSection("Relationships", rels)
	writeSection("Facts", facts)

	if len(entities)+len(rels)+len(facts) == 0 {
		b.WriteString("\nNothing recorded yet.\n")
	}
	return b.String()
}
