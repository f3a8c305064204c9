// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vecstore persists one embedding per paragraph, entity, or
// relation id in a SQLite database. It stores and retrieves strictly by
// id; relevance ranking lives elsewhere.
package vecstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Kind classifies an embedding by the item it belongs to.
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindEntity    Kind = "entity"
	KindRelation  Kind = "relation"
)

const dbFile = "vectors.db"

// Store is the durable vector store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the vector store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vector store directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector store schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS embeddings (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			vec BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_kind ON embeddings(kind)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Has reports whether an embedding exists for id.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM embeddings WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking embedding %s: %w", id, err)
	}
	return true, nil
}

// Get returns the embedding stored for id.
func (s *Store) Get(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vec FROM embeddings WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("embedding %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding %s: %w", id, err)
	}
	return Decode(blob)
}

// Count returns the number of embeddings of one kind.
func (s *Store) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM embeddings WHERE kind = ?`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s embeddings: %w", kind, err)
	}
	return n, nil
}

// CountPresent returns how many of ids currently have an embedding.
func (s *Store) CountPresent(ctx context.Context, ids []string) (int, error) {
	present := 0
	for _, id := range ids {
		ok, err := s.Has(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			present++
		}
	}
	return present, nil
}

// IDs returns every stored id. Used by reload to cross-check the stores.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("listing embedding ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning embedding id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sample returns up to n ids of one kind in stable order.
func (s *Store) Sample(ctx context.Context, kind Kind, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM embeddings WHERE kind = ? ORDER BY id LIMIT ?`, kind, n)
	if err != nil {
		return nil, fmt.Errorf("sampling %s embeddings: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning sample id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Tx wraps a write transaction against the vector store.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning vector store transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Insert stores an embedding. Existing ids are overwritten, which keeps
// re-imports of identical content idempotent.
func (t *Tx) Insert(ctx context.Context, id string, kind Kind, vec []float32) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (id, kind, vec) VALUES (?, ?, ?)`,
		id, kind, Encode(vec))
	if err != nil {
		return fmt.Errorf("inserting embedding %s: %w", id, err)
	}
	return nil
}

// Delete removes the embedding for id. It reports whether a row existed.
func (t *Tx) Delete(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting embedding %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting embedding %s: %w", id, err)
	}
	return n > 0, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
