// Package postgres implements the durable document store on PostgreSQL with
// the pgvector extension, adding true semantic similarity search over the
// document content renderings.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scoutdb/scoutdb/internal/storage"
	"github.com/scoutdb/scoutdb/pkg/types"
)

// DefaultEmbeddingDimension matches common sentence-embedding models. The
// table is created with this dimension; changing it requires a migration.
const DefaultEmbeddingDimension = 768

// DocumentStore implements storage.DocumentStore using PostgreSQL + pgvector.
type DocumentStore struct {
	db        *sql.DB
	embed     storage.EmbeddingFunc
	dimension int
}

// NewDocumentStore connects to PostgreSQL and prepares the schema. The
// embedding function may be nil, in which case documents are stored without
// vectors and semantic queries degrade to text matching.
func NewDocumentStore(dsn string, embed storage.EmbeddingFunc) (*DocumentStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &DocumentStore{db: db, embed: embed, dimension: DefaultEmbeddingDimension}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DocumentStore) createSchema() error {
	if _, err := s.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("postgres: failed to enable pgvector: %w", err)
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS documents (
		kind       TEXT NOT NULL,
		id         TEXT NOT NULL,
		domain     TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		record     JSONB NOT NULL,
		embedding  vector(%d),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (kind, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(domain);

	CREATE TABLE IF NOT EXISTS snapshots (
		id         BIGSERIAL PRIMARY KEY,
		data       JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`, s.dimension)
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// embedding computes the vector for content, or nil when no provider is
// configured or the provider fails. Embedding failures are logged, never
// propagated: a document without a vector is still durably stored.
func (s *DocumentStore) embedding(ctx context.Context, content string) interface{} {
	if s.embed == nil {
		return nil
	}
	vec, err := s.embed(ctx, content)
	if err != nil {
		log.Printf("postgres: embedding failed, storing without vector: %v", err)
		return nil
	}
	if len(vec) != s.dimension {
		log.Printf("postgres: embedding dimension %d != %d, storing without vector", len(vec), s.dimension)
		return nil
	}
	return pgvector.NewVector(vec)
}

func (s *DocumentStore) saveDocument(ctx context.Context, kind types.RecordKind, id, domain, content string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal %s %s: %w", kind, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (kind, id, domain, content, record, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (kind, id) DO UPDATE SET
			domain = EXCLUDED.domain,
			content = EXCLUDED.content,
			record = EXCLUDED.record,
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		string(kind), id, domain, content, string(data), s.embedding(ctx, content))
	if err != nil {
		return fmt.Errorf("postgres: failed to save %s %s: %w", kind, id, err)
	}
	return nil
}

// SaveEntity upserts an entity document.
func (s *DocumentStore) SaveEntity(ctx context.Context, domain string, entity *types.Entity) error {
	return s.saveDocument(ctx, types.KindEntity, entity.ID, domain, storage.RenderEntity(entity), entity)
}

// SaveRelationship upserts a relationship document.
func (s *DocumentStore) SaveRelationship(ctx context.Context, domain string, rel *types.Relationship) error {
	return s.saveDocument(ctx, types.KindRelationship, rel.ID, domain, storage.RenderRelationship(rel), rel)
}

// SaveFact upserts a fact document.
func (s *DocumentStore) SaveFact(ctx context.Context, domain string, fact *types.Fact) error {
	return s.saveDocument(ctx, types.KindFact, fact.ID, domain, storage.RenderFact(fact), fact)
}

// DeleteRecord removes a persisted document.
func (s *DocumentStore) DeleteRecord(ctx context.Context, kind types.RecordKind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete %s %s: %w", kind, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// QueryRecords returns matching documents. With Semantic set and an embedding
// provider configured, results are ordered by cosine distance to the goal
// text and carry a similarity score; otherwise the query degrades to ILIKE
// matching ordered by recency.
func (s *DocumentStore) QueryRecords(ctx context.Context, q storage.RecordQuery) ([]storage.Document, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Domain != "" {
		conds = append(conds, "domain = "+arg(q.Domain))
	}
	if q.Kind != "" {
		conds = append(conds, "kind = "+arg(string(q.Kind)))
	}

	var query string
	semantic := false
	if q.Semantic && q.Goal != "" && s.embed != nil {
		if vec := s.embedding(ctx, q.Goal); vec != nil {
			semantic = true
			conds = append(conds, "embedding IS NOT NULL")
			vecParam := arg(vec)
			query = fmt.Sprintf(`
				SELECT kind, id, domain, content, record, 1 - (embedding <=> %s) AS score
				FROM documents WHERE %s
				ORDER BY embedding <=> %s LIMIT %d`,
				vecParam, strings.Join(conds, " AND "), vecParam, limit)
		}
	}
	if !semantic {
		if q.Goal != "" {
			conds = append(conds, "content ILIKE "+arg("%"+q.Goal+"%"))
		}
		where := ""
		if len(conds) > 0 {
			where = " WHERE " + strings.Join(conds, " AND ")
		}
		query = fmt.Sprintf(`
			SELECT kind, id, domain, content, record, 0 AS score
			FROM documents%s ORDER BY updated_at DESC LIMIT %d`, where, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		var (
			kind, id, domain, content string
			record                    []byte
			score                     float64
		)
		if err := rows.Scan(&kind, &id, &domain, &content, &record, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan failed: %w", err)
		}
		doc, err := decodeDocument(types.RecordKind(kind), id, domain, content, record)
		if err != nil {
			return nil, err
		}
		doc.Score = score
		if q.EntityType != "" && (doc.Entity == nil || doc.Entity.Type != q.EntityType) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func decodeDocument(kind types.RecordKind, id, domain, content string, record []byte) (storage.Document, error) {
	doc := storage.Document{Kind: kind, ID: id, Domain: domain, Content: content}
	var err error
	switch kind {
	case types.KindEntity:
		doc.Entity = &types.Entity{}
		err = json.Unmarshal(record, doc.Entity)
	case types.KindRelationship:
		doc.Relationship = &types.Relationship{}
		err = json.Unmarshal(record, doc.Relationship)
	case types.KindFact:
		doc.Fact = &types.Fact{}
		err = json.Unmarshal(record, doc.Fact)
	default:
		err = fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return doc, nil
}

// SaveSnapshot persists a full world model snapshot.
func (s *DocumentStore) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (data) VALUES ($1)`, string(data)); err != nil {
		return fmt.Errorf("postgres: failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the most recent snapshot.
func (s *DocumentStore) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load snapshot: %w", err)
	}
	snap := &types.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("postgres: failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Close releases the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}
