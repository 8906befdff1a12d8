// Package worldmodel composes the record store, change log, consistency
// auditor, and query engine behind one façade. The core components are
// synchronous and assume exclusive access per call; this package owns the
// single-writer/many-reader lock that makes the composition safe to host in a
// concurrent process, and it is the only layer that talks to the durable
// mirror.
package worldmodel

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scoutdb/scoutdb/internal/changelog"
	"github.com/scoutdb/scoutdb/internal/query"
	"github.com/scoutdb/scoutdb/internal/store"
	"github.com/scoutdb/scoutdb/pkg/types"
)

// Config tunes the composed components. Zero values select the defaults.
type Config struct {
	// MaxEvents caps the change log ring. Default: changelog.DefaultMaxEvents.
	MaxEvents int

	// CacheTTL is the query result cache window. Negative disables caching.
	// Default: 60 seconds.
	CacheTTL time.Duration

	// AuditInterval rate-limits consistency checks. Negative disables the
	// limit. Default: 60 seconds.
	AuditInterval time.Duration
}

// ChangeCallback observes committed change events. Callbacks run after the
// write lock is released, on the writer's goroutine; slow callbacks delay the
// writer, not other readers.
type ChangeCallback func(*types.ChangeEvent)

// WorldModel is the façade over the knowledge graph core.
type WorldModel struct {
	mu      sync.RWMutex
	store   *store.Store
	log     *changelog.ChangeLog
	auditor *changelog.Auditor
	engine  *query.Engine
	mirror  *Mirror

	cbMu      sync.RWMutex
	callbacks []ChangeCallback
}

// New builds a world model with default configuration and no durable mirror.
func New() *WorldModel {
	return NewWithConfig(Config{})
}

// NewWithConfig builds a world model with custom configuration.
func NewWithConfig(cfg Config) *WorldModel {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = changelog.DefaultMaxEvents
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = query.DefaultCacheTTL
	} else if cacheTTL < 0 {
		cacheTTL = 0
	}
	auditInterval := cfg.AuditInterval
	if auditInterval == 0 {
		auditInterval = changelog.DefaultCheckInterval
	} else if auditInterval < 0 {
		auditInterval = 0
	}

	s := store.New()
	return &WorldModel{
		store:   s,
		log:     changelog.NewWithCap(maxEvents),
		auditor: changelog.NewAuditorWithInterval(auditInterval),
		engine:  query.NewWithTTL(s, cacheTTL),
	}
}

// AttachMirror wires a durable mirror. Call before serving traffic; the
// mirror reference is not guarded by the write lock.
func (w *WorldModel) AttachMirror(m *Mirror) {
	w.mirror = m
}

// OnChange registers a callback invoked for every committed change event.
func (w *WorldModel) OnChange(cb ChangeCallback) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *WorldModel) notify(events []*types.ChangeEvent) {
	w.cbMu.RLock()
	cbs := w.callbacks
	w.cbMu.RUnlock()
	for _, e := range events {
		for _, cb := range cbs {
			cb(e)
		}
	}
}

// domainOf extracts the hostname from a source URL for mirror partitioning.
func domainOf(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func newEvent(t types.EventType, recordID string, before, after interface{}, sourceURL, sessionID string) *types.ChangeEvent {
	return &types.ChangeEvent{
		ID:        uuid.NewString(),
		Type:      t,
		RecordID:  recordID,
		Before:    before,
		After:     after,
		SourceURL: sourceURL,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// --- Write operations ---

func normalizeEntity(e *types.Entity) {
	if e.ExtractedAt.IsZero() {
		e.ExtractedAt = time.Now()
	}
	if e.LastUpdated.IsZero() {
		e.LastUpdated = e.ExtractedAt
	}
}

// UpsertEntity inserts or overwrites an entity and logs the change.
func (w *WorldModel) UpsertEntity(e *types.Entity, sessionID string) {
	normalizeEntity(e)

	w.mu.Lock()
	prev := w.store.AddEntity(e)
	t := types.EventEntityCreated
	if prev != nil {
		t = types.EventEntityUpdated
	}
	ev := newEvent(t, e.ID, prev, e, e.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.SaveEntity(domainOf(e.SourceURL), e)
	}
	w.notify([]*types.ChangeEvent{ev})
}

// UpsertRelationship inserts or overwrites a relationship and logs the change.
func (w *WorldModel) UpsertRelationship(r *types.Relationship, sessionID string) {
	if r.ExtractedAt.IsZero() {
		r.ExtractedAt = time.Now()
	}

	w.mu.Lock()
	prev := w.store.AddRelationship(r)
	t := types.EventRelationshipCreated
	if prev != nil {
		t = types.EventRelationshipUpdated
	}
	ev := newEvent(t, r.ID, prev, r, r.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.SaveRelationship(domainOf(r.SourceURL), r)
	}
	w.notify([]*types.ChangeEvent{ev})
}

// UpsertFact inserts or overwrites a fact and logs the change.
func (w *WorldModel) UpsertFact(f *types.Fact, sessionID string) {
	if f.ExtractedAt.IsZero() {
		f.ExtractedAt = time.Now()
	}

	w.mu.Lock()
	prev := w.store.AddFact(f)
	t := types.EventFactCreated
	if prev != nil {
		t = types.EventFactUpdated
	}
	ev := newEvent(t, f.ID, prev, f, f.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.SaveFact(domainOf(f.SourceURL), f)
	}
	w.notify([]*types.ChangeEvent{ev})
}

// RemoveEntity deletes an entity. Relationships referencing it are left in
// place and surface later as orphans in the consistency audit.
func (w *WorldModel) RemoveEntity(id, sessionID string) bool {
	w.mu.Lock()
	prev := w.store.GetEntity(id)
	if prev == nil {
		w.mu.Unlock()
		return false
	}
	w.store.RemoveEntity(id)
	ev := newEvent(types.EventEntityDeleted, id, prev, nil, prev.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.DeleteRecord(types.KindEntity, id)
	}
	w.notify([]*types.ChangeEvent{ev})
	return true
}

// RemoveRelationship deletes a relationship.
func (w *WorldModel) RemoveRelationship(id, sessionID string) bool {
	w.mu.Lock()
	prev := w.store.GetRelationship(id)
	if prev == nil {
		w.mu.Unlock()
		return false
	}
	w.store.RemoveRelationship(id)
	ev := newEvent(types.EventRelationshipDeleted, id, prev, nil, prev.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.DeleteRecord(types.KindRelationship, id)
	}
	w.notify([]*types.ChangeEvent{ev})
	return true
}

// RemoveFact deletes a fact.
func (w *WorldModel) RemoveFact(id, sessionID string) bool {
	w.mu.Lock()
	prev := w.store.GetFact(id)
	if prev == nil {
		w.mu.Unlock()
		return false
	}
	w.store.RemoveFact(id)
	ev := newEvent(types.EventFactDeleted, id, prev, nil, prev.SourceURL, sessionID)
	w.log.LogEvent(ev)
	w.mu.Unlock()

	if w.mirror != nil {
		w.mirror.DeleteRecord(types.KindFact, id)
	}
	w.notify([]*types.ChangeEvent{ev})
	return true
}

// --- Ingest ---

// IngestResult summarizes what one scraped episode contributed.
type IngestResult struct {
	SessionID            string `json:"session_id"`
	EntitiesCreated      int    `json:"entities_created"`
	EntitiesUpdated      int    `json:"entities_updated"`
	RelationshipsCreated int    `json:"relationships_created"`
	RelationshipsUpdated int    `json:"relationships_updated"`
	FactsCreated         int    `json:"facts_created"`
	FactsUpdated         int    `json:"facts_updated"`
}

// ErrEmptyIngest is returned when a scraped record carries no observations.
var ErrEmptyIngest = errors.New("scraped data has no observations")

// Ingest turns one scraped episode into typed records: observations are
// classified into entities, linked by the type-pair compatibility table, and
// recorded as facts on the primary product entity. All change events from one
// call share a session id. Records referencing entities that have not arrived
// yet are accepted as-is; the consistency auditor is the integrity mechanism.
func (w *WorldModel) Ingest(data *types.ScrapedData) (*IngestResult, error) {
	if data == nil || len(data.Extracted) == 0 {
		return nil, ErrEmptyIngest
	}
	sessionID := data.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	inf := inferRecords(data)
	res := &IngestResult{SessionID: sessionID}
	var events []*types.ChangeEvent

	w.mu.Lock()

	for _, e := range inf.entities {
		prev := w.store.AddEntity(e)
		t := types.EventEntityCreated
		if prev != nil {
			t = types.EventEntityUpdated
			res.EntitiesUpdated++
		} else {
			res.EntitiesCreated++
		}
		events = append(events, newEvent(t, e.ID, prev, e, data.URL, sessionID))
	}

	// A new price supersedes whichever price edge the product held before:
	// the old edge is closed out and a CHANGED_FROM edge records the hop so
	// price history stays walkable.
	priceEvents, priceEdges := w.recordPriceChanges(inf, data.URL, sessionID, res)
	events = append(events, priceEvents...)

	for _, r := range inf.relationships {
		prev := w.store.AddRelationship(r)
		t := types.EventRelationshipCreated
		if prev != nil {
			t = types.EventRelationshipUpdated
			res.RelationshipsUpdated++
		} else {
			res.RelationshipsCreated++
		}
		events = append(events, newEvent(t, r.ID, prev, r, data.URL, sessionID))
	}

	for _, f := range inf.facts {
		prev := w.store.AddFact(f)
		t := types.EventFactCreated
		if prev != nil {
			t = types.EventFactUpdated
			res.FactsUpdated++
		} else {
			res.FactsCreated++
		}
		events = append(events, newEvent(t, f.ID, prev, f, data.URL, sessionID))
	}

	for _, ev := range events {
		w.log.LogEvent(ev)
	}
	w.mu.Unlock()

	if w.mirror != nil {
		for _, e := range inf.entities {
			w.mirror.SaveEntity(data.Domain, e)
		}
		for _, r := range inf.relationships {
			w.mirror.SaveRelationship(data.Domain, r)
		}
		for _, f := range inf.facts {
			w.mirror.SaveFact(data.Domain, f)
		}
		for _, r := range priceEdges {
			w.mirror.SaveRelationship(data.Domain, r)
		}
	}
	w.notify(events)
	return res, nil
}

// recordPriceChanges closes out superseded price edges. Caller holds the
// write lock. For each inferred PRICED_AT edge whose product already carries
// a PRICED_AT edge to a different price entity, the old edge gets its ValidTo
// stamped and a CHANGED_FROM edge is drawn from the new price to the old one.
// Returns the change events plus the touched edges for mirroring.
func (w *WorldModel) recordPriceChanges(inf *inferred, sourceURL, sessionID string, res *IngestResult) ([]*types.ChangeEvent, []*types.Relationship) {
	var events []*types.ChangeEvent
	var touched []*types.Relationship
	now := time.Now()

	for _, newEdge := range inf.relationships {
		if newEdge.Type != types.RelPricedAt {
			continue
		}
		for _, old := range w.store.GetRelationshipsBySource(newEdge.Source) {
			if old.Type != types.RelPricedAt || old.Target == newEdge.Target || old.ValidTo != nil {
				continue
			}

			closed := *old
			closed.ValidTo = &now
			prev := w.store.AddRelationship(&closed)
			res.RelationshipsUpdated++
			events = append(events, newEvent(types.EventRelationshipUpdated, closed.ID, prev, &closed, sourceURL, sessionID))
			touched = append(touched, &closed)

			hop := &types.Relationship{
				ID:          relationshipID(types.RelChangedFrom, newEdge.Target, old.Target),
				Type:        types.RelChangedFrom,
				Source:      newEdge.Target,
				Target:      old.Target,
				Confidence:  newEdge.Confidence,
				SourceURL:   sourceURL,
				ExtractedAt: now,
				ValidFrom:   &now,
			}
			hopPrev := w.store.AddRelationship(hop)
			t := types.EventRelationshipCreated
			if hopPrev != nil {
				t = types.EventRelationshipUpdated
				res.RelationshipsUpdated++
			} else {
				res.RelationshipsCreated++
			}
			events = append(events, newEvent(t, hop.ID, hopPrev, hop, sourceURL, sessionID))
			touched = append(touched, hop)
		}
	}
	return events, touched
}

// --- Read operations ---

// GetEntity returns an entity by id, or nil.
func (w *WorldModel) GetEntity(id string) *types.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.GetEntity(id)
}

// GetRelationship returns a relationship by id, or nil.
func (w *WorldModel) GetRelationship(id string) *types.Relationship {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.GetRelationship(id)
}

// GetFact returns a fact by id, or nil.
func (w *WorldModel) GetFact(id string) *types.Fact {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.GetFact(id)
}

// Query executes a structured read through the query engine.
func (w *WorldModel) Query(q *types.WorldModelQuery) *types.WorldModelResponse {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.engine.Query(q)
}

// Traverse runs a bounded breadth-first traversal.
func (w *WorldModel) Traverse(spec *types.TraversalSpec) *types.TraversalResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.engine.Traverse(spec)
}

// FindSimilarEntities scores same-type entities by the in-memory heuristic.
func (w *WorldModel) FindSimilarEntities(id string, limit int) []query.ScoredEntity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.engine.FindSimilarEntities(id, limit)
}

// FindEntityByPath walks an exact typed-hop path from a start entity.
func (w *WorldModel) FindEntityByPath(startID string, relationshipTypes []types.RelationType) []*types.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.engine.FindEntityByPath(startID, relationshipTypes)
}

// GetEvents returns change events matching the filter, newest first.
func (w *WorldModel) GetEvents(f changelog.EventFilter) []*types.ChangeEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.GetEvents(f)
}

// GetEventHistory returns one record's lifecycle, oldest first.
func (w *WorldModel) GetEventHistory(recordID string, kind types.RecordKind) []*types.ChangeEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.GetEventHistory(recordID, kind)
}

// --- Consistency ---

// CheckConsistency runs the enabled audit rules over the full record set and
// returns the current unresolved findings.
func (w *WorldModel) CheckConsistency() []*types.Inconsistency {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auditor.CheckConsistency(w.store.AllEntities(), w.store.AllRelationships(), w.store.AllFacts())
}

// Inconsistencies returns findings, optionally including resolved ones.
func (w *WorldModel) Inconsistencies(includeResolved bool) []*types.Inconsistency {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if includeResolved {
		return w.auditor.All()
	}
	return w.auditor.Unresolved()
}

// ResolveInconsistency marks a finding resolved. Returns false for unknown ids.
func (w *WorldModel) ResolveInconsistency(id, resolution string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auditor.Resolve(id, resolution)
}

// AddRule installs or replaces a custom audit rule.
func (w *WorldModel) AddRule(rule *changelog.Rule) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.auditor.AddRule(rule)
}

// RemoveRule uninstalls an audit rule by name.
func (w *WorldModel) RemoveRule(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auditor.RemoveRule(name)
}

// EnableRule enables an audit rule by name.
func (w *WorldModel) EnableRule(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auditor.EnableRule(name)
}

// DisableRule disables an audit rule by name.
func (w *WorldModel) DisableRule(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auditor.DisableRule(name)
}

// Rules lists the installed audit rules.
func (w *WorldModel) Rules() []*changelog.Rule {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.auditor.Rules()
}

// --- Statistics, snapshots ---

// Statistics reports counts and diagnostics across the composed components.
type Statistics struct {
	Store                     store.Statistics `json:"store"`
	Events                    int              `json:"events"`
	UnresolvedInconsistencies int              `json:"unresolved_inconsistencies"`
	MirrorState               string           `json:"mirror_state,omitempty"`
	MirrorDropped             uint64           `json:"mirror_dropped,omitempty"`
}

// Statistics returns health diagnostics.
func (w *WorldModel) Statistics() Statistics {
	w.mu.RLock()
	stats := Statistics{
		Store:                     w.store.Statistics(),
		Events:                    w.log.Len(),
		UnresolvedInconsistencies: len(w.auditor.Unresolved()),
	}
	w.mu.RUnlock()

	if w.mirror != nil {
		stats.MirrorState = w.mirror.State()
		stats.MirrorDropped = w.mirror.Dropped()
	}
	return stats
}

// Export captures the full state: records, events, findings, and rule state.
func (w *WorldModel) Export() *types.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	snap := w.store.Export()
	snap.Events = w.log.Events()
	snap.Inconsistencies = w.auditor.All()
	snap.Rules = w.auditor.ExportRules()
	return snap
}

// Import replaces the full state with a snapshot. Prior state is cleared
// first; there are no merge semantics. Rule enabled flags are re-applied to
// the registered rules by name.
func (w *WorldModel) Import(snap *types.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store.Import(snap)
	w.log.Reset(snap.Events)
	w.auditor.Import(snap.Inconsistencies)
	w.auditor.ImportRules(snap.Rules)
}

// Checkpoint persists a full snapshot to the durable mirror.
func (w *WorldModel) Checkpoint(ctx context.Context) error {
	if w.mirror == nil {
		return ErrNoMirror
	}
	return w.mirror.SaveSnapshot(ctx, w.Export())
}

// Restore replaces in-memory state with the mirror's most recent snapshot.
func (w *WorldModel) Restore(ctx context.Context) error {
	if w.mirror == nil {
		return ErrNoMirror
	}
	snap, err := w.mirror.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	w.Import(snap)
	return nil
}

// Close flushes the mirror and releases its backing store.
func (w *WorldModel) Close() error {
	if w.mirror == nil {
		return nil
	}
	return w.mirror.Close()
}
