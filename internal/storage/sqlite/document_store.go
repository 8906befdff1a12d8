// Package sqlite implements the durable document store on SQLite via the
// pure-Go modernc.org/sqlite driver. It has no embedding provider: semantic
// queries degrade to text matching, which keeps single-binary deployments
// dependency-free.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scoutdb/scoutdb/internal/storage"
	"github.com/scoutdb/scoutdb/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	record     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(domain);

CREATE TABLE IF NOT EXISTS snapshots (
	rowid_seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	data       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DocumentStore implements storage.DocumentStore using SQLite.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore opens (or creates) a SQLite-backed document store at the
// given DSN. Use ":memory:" for tests.
func NewDocumentStore(dsn string) (*DocumentStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load;
	// WAL mode keeps readers from blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DocumentStore{db: db}, nil
}

func (s *DocumentStore) saveDocument(ctx context.Context, kind types.RecordKind, id, domain, content string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal %s %s: %w", kind, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (kind, id, domain, content, record, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, id) DO UPDATE SET
			domain = excluded.domain,
			content = excluded.content,
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP`,
		string(kind), id, domain, content, string(data))
	if err != nil {
		return fmt.Errorf("sqlite: failed to save %s %s: %w", kind, id, err)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete %s %s: %w", kind, id, err)
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

// QueryRecords returns documents matching the query. Semantic queries degrade
// to LIKE matching on the content rendering; this backend has no vector index.
func (s *DocumentStore) QueryRecords(ctx context.Context, q storage.RecordQuery) ([]storage.Document, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.Domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, q.Domain)
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Goal != "" {
		conds = append(conds, "content LIKE ?")
		args = append(args, "%"+q.Goal+"%")
	}

	query := "SELECT kind, id, domain, content, record FROM documents"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		var (
			kind, id, domain, content, record string
		)
		if err := rows.Scan(&kind, &id, &domain, &content, &record); err != nil {
			return nil, fmt.Errorf("sqlite: scan failed: %w", err)
		}
		doc, err := decodeDocument(types.RecordKind(kind), id, domain, content, []byte(record))
		if err != nil {
			return nil, err
		}
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
		return fmt.Errorf("sqlite: failed to marshal snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (data) VALUES (?)`, string(data)); err != nil {
		return fmt.Errorf("sqlite: failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the most recent snapshot.
func (s *DocumentStore) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots ORDER BY rowid_seq DESC LIMIT 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load snapshot: %w", err)
	}
	snap := &types.Snapshot{}
	if err := json.Unmarshal([]byte(data), snap); err != nil {
		return nil, fmt.Errorf("sqlite: failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Close releases the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}
