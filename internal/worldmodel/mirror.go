package worldmodel

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scoutdb/scoutdb/internal/storage"
	"github.com/scoutdb/scoutdb/pkg/types"
)

// ErrNoMirror is returned by operations that need a durable backing store when
// the world model was built without one.
var ErrNoMirror = errors.New("no durable mirror configured")

// MirrorConfig tunes the circuit breaker guarding durable writes.
type MirrorConfig struct {
	// MaxFailures is the number of consecutive failures required to trip the
	// circuit. Default: 5.
	MaxFailures uint32

	// OpenTimeout is how long the circuit stays open before allowing probe
	// writes. Default: 30 seconds.
	OpenTimeout time.Duration

	// WriteTimeout bounds each individual mirrored write. Default: 5 seconds.
	WriteTimeout time.Duration
}

// Mirror replicates world model writes to a durable document store as a
// best-effort side effect. Every write runs asynchronously behind a circuit
// breaker: a slow or down backing store never blocks or fails the in-memory
// write, it only costs durability until the store recovers.
type Mirror struct {
	docs    storage.DocumentStore
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration

	wg sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
}

// NewMirror wraps a document store with default breaker settings.
func NewMirror(docs storage.DocumentStore) *Mirror {
	return NewMirrorWithConfig(docs, MirrorConfig{})
}

// NewMirrorWithConfig wraps a document store with custom breaker settings.
func NewMirrorWithConfig(docs storage.DocumentStore, cfg MirrorConfig) *Mirror {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	m := &Mirror{docs: docs, timeout: cfg.WriteTimeout}
	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "durable-mirror",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("mirror: circuit %s -> %s", from, to)
		},
	})
	return m
}

// run executes one mirrored write on its own goroutine. Failures are counted
// and logged, never returned: the in-memory write already succeeded.
func (m *Mirror) run(op string, fn func(ctx context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, err := m.breaker.Execute(func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
			defer cancel()
			return nil, fn(ctx)
		})
		if err == nil {
			return
		}
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Printf("mirror: %s dropped, circuit open", op)
			return
		}
		log.Printf("mirror: %s failed: %v", op, err)
	}()
}

// SaveEntity mirrors an entity write.
func (m *Mirror) SaveEntity(domain string, e *types.Entity) {
	m.run("save entity "+e.ID, func(ctx context.Context) error {
		return m.docs.SaveEntity(ctx, domain, e)
	})
}

// SaveRelationship mirrors a relationship write.
func (m *Mirror) SaveRelationship(domain string, r *types.Relationship) {
	m.run("save relationship "+r.ID, func(ctx context.Context) error {
		return m.docs.SaveRelationship(ctx, domain, r)
	})
}

// SaveFact mirrors a fact write.
func (m *Mirror) SaveFact(domain string, f *types.Fact) {
	m.run("save fact "+f.ID, func(ctx context.Context) error {
		return m.docs.SaveFact(ctx, domain, f)
	})
}

// DeleteRecord mirrors a record removal. A record the backing store never saw
// is not an error worth counting against the breaker.
func (m *Mirror) DeleteRecord(kind types.RecordKind, id string) {
	m.run("delete "+string(kind)+" "+id, func(ctx context.Context) error {
		err := m.docs.DeleteRecord(ctx, kind, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	})
}

// QueryRecords reads from the backing store synchronously. Reads bypass the
// breaker: a failed read surfaces to the caller, who decides how to degrade.
func (m *Mirror) QueryRecords(ctx context.Context, q storage.RecordQuery) ([]storage.Document, error) {
	return m.docs.QueryRecords(ctx, q)
}

// SaveSnapshot persists a snapshot synchronously. Checkpointing is an explicit
// caller request, not a best-effort side effect, so errors propagate.
func (m *Mirror) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	return m.docs.SaveSnapshot(ctx, snap)
}

// LoadSnapshot loads the most recent snapshot synchronously.
func (m *Mirror) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	return m.docs.LoadSnapshot(ctx)
}

// State reports the breaker state: "closed", "open", or "half-open".
func (m *Mirror) State() string {
	switch m.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Dropped returns the number of mirrored writes lost to failures or an open
// circuit since startup.
func (m *Mirror) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Wait blocks until all in-flight mirrored writes have finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

// Close waits for in-flight writes and releases the backing store.
func (m *Mirror) Close() error {
	m.wg.Wait()
	return m.docs.Close()
}
