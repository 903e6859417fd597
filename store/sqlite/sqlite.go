/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  An embedded document store. Every ledger collection lives in one
  "documents" table keyed by (collection, id) with the record as a JSON
  body. The ledger never depends on this schema.

PARTIAL UPDATES:
  Update uses json_patch (RFC 7396 merge patch): listed fields overwrite,
  null removes a field, everything else is untouched.

CASCADES:
  DeleteWhere matches json_extract(body, '$.<field>'), which is how an
  account delete removes transactions by accountId / toAccountId. Both
  paths are indexed.

ORDERING:
  GetAll returns insertion order (rowid). BulkReplace runs in one SQL
  transaction so a failed batch leaves the collection as it was.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection, which also keeps
  ":memory:" databases on one connection.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/money-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	-- Cascading transaction delete on account delete
	CREATE INDEX IF NOT EXISTS idx_documents_account
		ON documents(collection, json_extract(body, '$.accountId'));
	CREATE INDEX IF NOT EXISTS idx_documents_to_account
		ON documents(collection, json_extract(body, '$.toAccountId'));

	-- Event logs/plans cleanup on event delete
	CREATE INDEX IF NOT EXISTS idx_documents_event
		ON documents(collection, json_extract(body, '$.eventId'));
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ledger.Store
// =============================================================================

func (s *Store) GetAll(ctx context.Context, c ledger.Collection) ([]ledger.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid ASC",
		string(c),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	var docs []ledger.Document
	for rows.Next() {
		var (
			id   string
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}
		docs = append(docs, ledger.Document{ID: id, Body: json.RawMessage(body)})
	}
	return docs, rows.Err()
}

func (s *Store) Add(ctx context.Context, c ledger.Collection, doc ledger.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insert(ctx, s.db, c, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) insert(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, c ledger.Collection, doc ledger.Document) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, json(?), ?, ?)",
		string(c), doc.ID, string(doc.Body), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%s/%s already exists: %w", c, doc.ID, err)
		}
		return fmt.Errorf("failed to insert %s/%s: %w", c, doc.ID, err)
	}
	return nil
}

// Update merges fields into the stored document. Nil values remove keys.
func (s *Store) Update(ctx context.Context, c ledger.Collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode patch for %s/%s: %w", c, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET body = json_patch(body, ?), updated_at = ? WHERE collection = ? AND id = ?",
		string(patch), time.Now().UTC().Format(time.RFC3339), string(c), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c ledger.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", string(c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, c ledger.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", string(c))
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", c, err)
	}
	return nil
}

// BulkReplace clears the collection and inserts docs atomically.
func (s *Store) BulkReplace(ctx context.Context, c ledger.Collection, docs []ledger.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", string(c)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c, err)
	}
	for _, doc := range docs {
		if err := s.insert(ctx, sqlTx, c, doc); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) DeleteWhere(ctx context.Context, c ledger.Collection, field, value string) (int, error) {
	if !validField(field) {
		return 0, fmt.Errorf("invalid field name %q", field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND json_extract(body, '$."+field+"') = ?",
		string(c), value,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s where %s: %w", c, field, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// ADMIN
// =============================================================================

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, c ledger.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", string(c),
	).Scan(&count)
	return count, err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM documents")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// validField accepts plain JSON keys only; the name is spliced into a JSON path.
func validField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
