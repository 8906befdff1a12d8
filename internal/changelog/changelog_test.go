package changelog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func testEvent(id string, eventType types.EventType, recordID string, ts time.Time) *types.ChangeEvent {
	return &types.ChangeEvent{
		ID:        id,
		Type:      eventType,
		RecordID:  recordID,
		Timestamp: ts,
	}
}

func TestLogEvent_PrunesOldestBeyondCap(t *testing.T) {
	l := NewWithCap(5)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		l.LogEvent(testEvent(fmt.Sprintf("ev%d", i), types.EventEntityCreated, fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, 5, l.Len())

	events := l.GetEvents(EventFilter{})
	require.Len(t, events, 5)
	assert.Equal(t, "ev7", events[0].ID, "reads are newest-first")
	assert.Equal(t, "ev3", events[4].ID, "oldest excess events are pruned")

	// Pruned events must be gone from the indexes too.
	for _, bucket := range l.byType {
		for _, id := range []string{"ev0", "ev1", "ev2"} {
			_, ok := bucket[id]
			assert.False(t, ok, "pruned event %s still indexed", id)
		}
	}
}

func TestGetEvents_FilterAndPagination(t *testing.T) {
	l := New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		l.LogEvent(testEvent(fmt.Sprintf("c%d", i), types.EventEntityCreated, "e1", base.Add(time.Duration(i)*time.Hour)))
		l.LogEvent(testEvent(fmt.Sprintf("d%d", i), types.EventEntityDeleted, "e2", base.Add(time.Duration(i)*time.Hour)))
	}

	created := l.GetEvents(EventFilter{Types: []types.EventType{types.EventEntityCreated}})
	require.Len(t, created, 6)
	for _, e := range created {
		assert.Equal(t, types.EventEntityCreated, e.Type)
	}

	page := l.GetEvents(EventFilter{Types: []types.EventType{types.EventEntityCreated}, Limit: 2, Offset: 1})
	require.Len(t, page, 2)
	assert.Equal(t, "c4", page[0].ID)
	assert.Equal(t, "c3", page[1].ID)

	ranged := l.GetEvents(EventFilter{From: base.Add(1 * time.Hour), To: base.Add(3 * time.Hour)})
	assert.Len(t, ranged, 6) // Three hours, two events each.

	none := l.GetEvents(EventFilter{Offset: 100})
	assert.Empty(t, none)
}

func TestGetEvents_SessionFilter(t *testing.T) {
	l := New()
	now := time.Now()
	a := testEvent("a", types.EventFactCreated, "f1", now)
	a.SessionID = "s1"
	b := testEvent("b", types.EventFactCreated, "f2", now)
	b.SessionID = "s2"
	l.LogEvent(a)
	l.LogEvent(b)

	got := l.GetEvents(EventFilter{SessionID: "s1"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestGetEventHistory_OldestFirstAndKindScoped(t *testing.T) {
	l := New()
	base := time.Now()

	// Same record ID used by an entity and a fact; history must scope by kind.
	l.LogEvent(testEvent("ev1", types.EventEntityCreated, "x1", base))
	l.LogEvent(testEvent("ev2", types.EventFactCreated, "x1", base.Add(time.Second)))
	l.LogEvent(testEvent("ev3", types.EventEntityUpdated, "x1", base.Add(2*time.Second)))
	l.LogEvent(testEvent("ev4", types.EventEntityDeleted, "x1", base.Add(3*time.Second)))

	history := l.GetEventHistory("x1", types.KindEntity)
	require.Len(t, history, 3)
	assert.Equal(t, "ev1", history[0].ID)
	assert.Equal(t, "ev3", history[1].ID)
	assert.Equal(t, "ev4", history[2].ID)
}

func TestReset_RebuildsIndexes(t *testing.T) {
	l := New()
	now := time.Now()
	l.LogEvent(testEvent("old", types.EventEntityCreated, "e1", now))

	l.Reset([]*types.ChangeEvent{
		testEvent("new1", types.EventFactCreated, "f1", now),
		testEvent("new2", types.EventFactDeleted, "f1", now.Add(time.Second)),
	})

	assert.Equal(t, 2, l.Len())
	assert.Empty(t, l.GetEvents(EventFilter{Types: []types.EventType{types.EventEntityCreated}}))
	assert.Len(t, l.GetEventHistory("f1", types.KindFact), 2)
}
