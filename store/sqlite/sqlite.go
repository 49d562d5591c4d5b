// Package sqlite implements store.Store as JSON documents in SQLite.
//
// Each document is one row keyed by (collection, id) with its fields held
// in a JSON column; equality queries and field updates use the JSON1
// functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"github.com/bjaus/pushdispatch/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (collection, id)
);
`

// Field names are interpolated into JSON paths, so they are restricted to
// plain identifiers.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at dsn (a file path or ":memory:") and applies
// the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises
	// writers the way SQLite wants.
	db.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put creates or replaces a document.
func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`,
		collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(id, raw)
}

func (s *Store) QueryEqual(ctx context.Context, collection, field string, value any, limit int) ([]store.Document, error) {
	path, err := jsonPath(field)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, data FROM documents
WHERE collection = ? AND json_extract(data, ?) = ?
ORDER BY id
LIMIT ?`, collection, path, sqlValue(value), limit)
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Update(ctx context.Context, collection, id, field string, value any) error {
	path, err := jsonPath(field)
	if err != nil {
		return err
	}

	var res sql.Result
	if store.IsDelete(value) {
		res, err = s.db.ExecContext(ctx, `
UPDATE documents SET data = json_remove(data, ?), updated_at = datetime('now')
WHERE collection = ? AND id = ?`, path, collection, id)
	} else {
		raw, merr := json.Marshal(value)
		if merr != nil {
			return fmt.Errorf("encode %s: %w", field, merr)
		}
		res, err = s.db.ExecContext(ctx, `
UPDATE documents SET data = json_set(data, ?, json(?)), updated_at = datetime('now')
WHERE collection = ? AND id = ?`, path, string(raw), collection, id)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s %s: %w", collection, id, field, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s %s: %w", collection, id, field, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func jsonPath(field string) (string, error) {
	if !fieldName.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return "$." + field, nil
}

// sqlValue converts a query value to what json_extract yields for it.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func decode(id, raw string) (store.Document, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return store.Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}
