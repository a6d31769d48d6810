package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/msalah0e/mindmap/internal/apperr"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (collection, id)
);
`

// SQLite is a Store backed by a local SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := checkKey(collection, id); err != nil {
		return Document{}, err
	}
	var (
		data    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, apperr.NotFound("%s/%s", collection, id)
	}
	if err != nil {
		return Document{}, apperr.Unavailable("get "+collection+"/"+id, err)
	}
	return Document{ID: id, Data: json.RawMessage(data), UpdatedAt: time.UnixMilli(updated)}, nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	if !ValidCollection(collection) {
		return nil, apperr.Validation("invalid collection %q", collection)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, updated_at FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, apperr.Unavailable("list "+collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			d       Document
			data    string
			updated int64
		)
		if err := rows.Scan(&d.ID, &data, &updated); err != nil {
			return nil, apperr.Unavailable("list "+collection, err)
		}
		d.Data = json.RawMessage(data)
		d.UpdatedAt = time.UnixMilli(updated)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list "+collection, err)
	}
	return out, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, data []byte) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	if !json.Valid(data) {
		return apperr.Validation("document %s is not valid JSON", id)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(data), time.Now().UnixMilli())
	if err != nil {
		return apperr.Unavailable("set "+collection+"/"+id, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return apperr.Unavailable("delete "+collection+"/"+id, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
