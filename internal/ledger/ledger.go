// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger tracks which paragraph, entity, and relation ids each
// import batch contributed, and journals in-flight mutations so an
// interrupted import or deletion is detectable after restart.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Batch states. An importing batch whose process died is exactly what
// reload refuses to ignore.
const (
	StateImporting = "importing"
	StateCommitted = "committed"
	StateRemoved   = "removed"
)

// Item kinds recorded per batch.
const (
	KindParagraph = "paragraph"
	KindEntity    = "entity"
	KindRelation  = "relation"
)

const dbFile = "ledger.db"

// Item is one contributed id.
type Item struct {
	Kind string
	ID   string
}

// BatchInfo is a ledger row for one batch.
type BatchInfo struct {
	BatchID   string
	Source    string
	State     string
	CreatedAt time.Time
}

// Intent is a journaled mutation that has not completed yet.
type Intent struct {
	ID        string
	Op        string
	Detail    string
	CreatedAt time.Time
}

// Store is the durable batch ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
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
		`CREATE TABLE IF NOT EXISTS batches (
			batch_id TEXT PRIMARY KEY,
			source_file TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_items (
			batch_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			item_id TEXT NOT NULL,
			PRIMARY KEY (batch_id, kind, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_items_item ON batch_items(item_id)`,
		`CREATE TABLE IF NOT EXISTS intents (
			id TEXT PRIMARY KEY,
			op TEXT NOT NULL,
			detail TEXT,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginImport journals the start of a batch import. The row is durable
// before any store write happens, so a crash mid-import leaves the batch
// in the importing state. It reports whether the batch already existed
// (a re-import of a committed batch).
func (s *Store) BeginImport(ctx context.Context, batchID, sourceFile string) (bool, error) {
	state, err := s.State(ctx, batchID)
	if err != nil {
		return false, err
	}
	existed := state != ""

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (batch_id, source_file, state, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(batch_id) DO UPDATE SET state = excluded.state`,
		batchID, sourceFile, StateImporting, now)
	if err != nil {
		return false, fmt.Errorf("journaling import of %s: %w", batchID, err)
	}
	return existed, nil
}

// CommitImport records the batch's contributed items and marks it
// committed. This is the logical commit point of an import.
func (s *Store) CommitImport(ctx context.Context, batchID string, items []Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO batch_items (batch_id, kind, item_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, batchID, item.Kind, item.ID); err != nil {
			return fmt.Errorf("recording item %s: %w", item.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE batches SET state = ? WHERE batch_id = ?`, StateCommitted, batchID); err != nil {
		return fmt.Errorf("committing batch %s: %w", batchID, err)
	}
	return tx.Commit()
}

// AbortImport undoes the import journal entry after a rolled-back import.
// A batch that existed before the attempt returns to committed; a new one
// is dropped entirely.
func (s *Store) AbortImport(ctx context.Context, batchID string, existedBefore bool) error {
	if existedBefore {
		_, err := s.db.ExecContext(ctx,
			`UPDATE batches SET state = ? WHERE batch_id = ?`, StateCommitted, batchID)
		if err != nil {
			return fmt.Errorf("restoring batch %s: %w", batchID, err)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM batch_items WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("dropping items of aborted batch %s: %w", batchID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM batches WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("dropping aborted batch %s: %w", batchID, err)
	}
	return nil
}

// State returns the batch's state, or "" when the ledger has no row.
func (s *Store) State(ctx context.Context, batchID string) (string, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM batches WHERE batch_id = ?`, batchID).Scan(&state)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading state of %s: %w", batchID, err)
	}
	return state, nil
}

// Items returns the batch's contributed ids of one kind.
func (s *Store) Items(ctx context.Context, batchID, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM batch_items WHERE batch_id = ? AND kind = ? ORDER BY item_id`,
		batchID, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s items of %s: %w", kind, batchID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Batches returns every ledger row in creation order.
func (s *Store) Batches(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, source_file, state, created_at FROM batches ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var out []BatchInfo
	for rows.Next() {
		var (
			b  BatchInfo
			ts string
		)
		if err := rows.Scan(&b.BatchID, &b.Source, &b.State, &ts); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ImportingBatches returns batches stuck in the importing state.
func (s *Store) ImportingBatches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id FROM batches WHERE state = ?`, StateImporting)
	if err != nil {
		return nil, fmt.Errorf("listing importing batches: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning batch id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteItemsByID removes the given item ids from every batch that
// recorded them and marks batches whose item set became empty as removed.
// It returns the ids of newly emptied batches.
func (s *Store) DeleteItemsByID(ctx context.Context, ids []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM batch_items WHERE item_id = ?`, id); err != nil {
			return nil, fmt.Errorf("removing item %s: %w", id, err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT b.batch_id FROM batches b
		 WHERE b.state = ?
		   AND NOT EXISTS (SELECT 1 FROM batch_items i WHERE i.batch_id = b.batch_id)`,
		StateCommitted)
	if err != nil {
		return nil, fmt.Errorf("finding emptied batches: %w", err)
	}
	var emptied []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning emptied batch: %w", err)
		}
		emptied = append(emptied, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, id := range emptied {
		if _, err := tx.ExecContext(ctx,
			`UPDATE batches SET state = ? WHERE batch_id = ?`, StateRemoved, id); err != nil {
			return nil, fmt.Errorf("marking batch %s removed: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return emptied, nil
}

// OpenIntent journals the start of a mutation and returns the intent id.
// The row is durable before the mutation touches either store.
func (s *Store) OpenIntent(ctx context.Context, op, detail string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intents (id, op, detail, created_at) VALUES (?, ?, ?, ?)`,
		id, op, detail, now)
	if err != nil {
		return "", fmt.Errorf("opening %s intent: %w", op, err)
	}
	return id, nil
}

// CloseIntent clears a completed intent.
func (s *Store) CloseIntent(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM intents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("closing intent %s: %w", id, err)
	}
	return nil
}

// PendingIntents returns intents that never completed.
func (s *Store) PendingIntents(ctx context.Context) ([]Intent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, detail, created_at FROM intents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing intents: %w", err)
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		var (
			in     Intent
			detail sql.NullString
			ts     string
		)
		if err := rows.Scan(&in.ID, &in.Op, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning intent: %w", err)
		}
		in.Detail = detail.String
		in.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, in)
	}
	return out, rows.Err()
}
