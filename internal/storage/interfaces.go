// Package storage defines the contract between the in-memory world model and
// its durable backing store: a document database that persists the same
// entities/relationships/facts for cross-process durability, optionally with
// vector-based semantic similarity search.
//
// The world model treats the backing store as a best-effort collaborator.
// Mirrored writes never block or fail an in-memory write, and the core does
// not depend on the shape of the embedding vector or the similarity
// algorithm, only on getting back records and scores.
package storage

import (
	"context"
	"errors"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Document is one persisted record plus its free-text rendering. Exactly one
// of Entity/Relationship/Fact is set, matching Kind. Score is populated by
// similarity search, zero otherwise.
type Document struct {
	Kind         types.RecordKind    `json:"kind"`
	ID           string              `json:"id"`
	Domain       string              `json:"domain,omitempty"`
	Content      string              `json:"content"` // Text rendering used for embedding
	Entity       *types.Entity       `json:"entity,omitempty"`
	Relationship *types.Relationship `json:"relationship,omitempty"`
	Fact         *types.Fact         `json:"fact,omitempty"`
	Score        float64             `json:"score,omitempty"`
}

// RecordQuery filters persisted documents. Semantic switches the store to
// vector similarity search over the query text when the backend supports it;
// backends without an embedding provider fall back to text matching.
type RecordQuery struct {
	Domain     string           `json:"domain,omitempty"`
	Goal       string           `json:"goal,omitempty"` // Free-text query
	Kind       types.RecordKind `json:"kind,omitempty"`
	EntityType types.EntityType `json:"entity_type,omitempty"`
	Semantic   bool             `json:"semantic,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// EmbeddingFunc produces a vector for a text rendering. Embedding generation
// is outside this system; callers inject whatever provider they use. A nil
// EmbeddingFunc disables vector search on backends that need one.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// DocumentStore persists world model records durably.
type DocumentStore interface {
	// SaveEntity upserts an entity document.
	SaveEntity(ctx context.Context, domain string, entity *types.Entity) error

	// SaveRelationship upserts a relationship document.
	SaveRelationship(ctx context.Context, domain string, rel *types.Relationship) error

	// SaveFact upserts a fact document.
	SaveFact(ctx context.Context, domain string, fact *types.Fact) error

	// DeleteRecord removes a persisted document by kind and ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteRecord(ctx context.Context, kind types.RecordKind, id string) error

	// QueryRecords returns documents matching the query, best matches first.
	QueryRecords(ctx context.Context, q RecordQuery) ([]Document, error)

	// SaveSnapshot persists a full world model snapshot for restart recovery.
	SaveSnapshot(ctx context.Context, snap *types.Snapshot) error

	// LoadSnapshot returns the most recent snapshot, or ErrNotFound.
	LoadSnapshot(ctx context.Context) (*types.Snapshot, error)

	// Close releases the underlying database resources.
	Close() error
}
