// Package changelog provides the world model's audit trail: an append-only,
// size-bounded event log recording every store mutation, and a pluggable
// consistency auditor that scans the record set for logical contradictions.
//
// Like the store, this package performs no locking; the owning world model
// serialises access.
package changelog

import (
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// DefaultMaxEvents caps the in-memory event list. When the list exceeds the
// cap, the oldest excess events are pruned from the list and both indexes.
const DefaultMaxEvents = 10000

// hourBucketFormat is the day+hour granularity of the event time index.
const hourBucketFormat = "2006-01-02-15"

// EventFilter selects change events. Zero values mean "any".
type EventFilter struct {
	Types     []types.EventType
	RecordID  string
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// ChangeLog is the bounded, indexed event log.
type ChangeLog struct {
	maxEvents int
	events    []*types.ChangeEvent // Oldest first
	byID      map[string]*types.ChangeEvent
	byType    map[string]map[string]struct{} // Event type -> event IDs
	byBucket  map[string]map[string]struct{} // Day+hour bucket -> event IDs
}

// New creates a change log with the default event cap.
func New() *ChangeLog {
	return NewWithCap(DefaultMaxEvents)
}

// NewWithCap creates a change log holding at most maxEvents events.
func NewWithCap(maxEvents int) *ChangeLog {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &ChangeLog{
		maxEvents: maxEvents,
		byID:      make(map[string]*types.ChangeEvent),
		byType:    make(map[string]map[string]struct{}),
		byBucket:  make(map[string]map[string]struct{}),
	}
}

func bucketKey(t time.Time) string {
	return t.UTC().Format(hourBucketFormat)
}

// LogEvent appends an event to the log and both indexes, pruning the oldest
// events once the cap is exceeded.
func (l *ChangeLog) LogEvent(e *types.ChangeEvent) {
	l.events = append(l.events, e)
	l.byID[e.ID] = e
	addBucket(l.byType, string(e.Type), e.ID)
	addBucket(l.byBucket, bucketKey(e.Timestamp), e.ID)

	if excess := len(l.events) - l.maxEvents; excess > 0 {
		for _, old := range l.events[:excess] {
			delete(l.byID, old.ID)
			removeBucket(l.byType, string(old.Type), old.ID)
			removeBucket(l.byBucket, bucketKey(old.Timestamp), old.ID)
		}
		l.events = append([]*types.ChangeEvent(nil), l.events[excess:]...)
	}
}

func addBucket(idx map[string]map[string]struct{}, key, id string) {
	bucket, ok := idx[key]
	if !ok {
		bucket = make(map[string]struct{})
		idx[key] = bucket
	}
	bucket[id] = struct{}{}
}

func removeBucket(idx map[string]map[string]struct{}, key, id string) {
	bucket, ok := idx[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(idx, key)
	}
}

// candidateSet narrows the scan using the type and time-bucket indexes.
// A nil return means every event is a candidate.
func (l *ChangeLog) candidateSet(f EventFilter) map[string]struct{} {
	if len(f.Types) > 0 {
		set := make(map[string]struct{})
		for _, t := range f.Types {
			for id := range l.byType[string(t)] {
				set[id] = struct{}{}
			}
		}
		return set
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		set := make(map[string]struct{})
		bucket := f.From.UTC().Truncate(time.Hour)
		last := f.To.UTC().Truncate(time.Hour)
		for !bucket.After(last) {
			for id := range l.byBucket[bucket.Format(hourBucketFormat)] {
				set[id] = struct{}{}
			}
			bucket = bucket.Add(time.Hour)
		}
		return set
	}
	return nil
}

func (f EventFilter) matches(e *types.ChangeEvent) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// GetEvents returns matching events newest-first, paginated by the filter's
// offset and limit.
func (l *ChangeLog) GetEvents(f EventFilter) []*types.ChangeEvent {
	candidates := l.candidateSet(f)

	var matched []*types.ChangeEvent
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if candidates != nil {
			if _, ok := candidates[e.ID]; !ok {
				continue
			}
		}
		if !f.matches(e) {
			continue
		}
		matched = append(matched, e)
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}

// GetEventHistory returns the full mutation history of one record,
// oldest-first, so a record's lifecycle reads in story order.
func (l *ChangeLog) GetEventHistory(recordID string, kind types.RecordKind) []*types.ChangeEvent {
	var history []*types.ChangeEvent
	for _, e := range l.events {
		if e.RecordID == recordID && e.Kind() == kind {
			history = append(history, e)
		}
	}
	return history
}

// Events returns all events oldest-first. Used for snapshot export.
func (l *ChangeLog) Events() []*types.ChangeEvent {
	out := make([]*types.ChangeEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Reset clears the log and replaces it with the given events, oldest-first.
// Used for snapshot import.
func (l *ChangeLog) Reset(events []*types.ChangeEvent) {
	l.events = nil
	l.byID = make(map[string]*types.ChangeEvent)
	l.byType = make(map[string]map[string]struct{})
	l.byBucket = make(map[string]map[string]struct{})
	for _, e := range events {
		l.LogEvent(e)
	}
}

// Len returns the number of retained events.
func (l *ChangeLog) Len() int {
	return len(l.events)
}
