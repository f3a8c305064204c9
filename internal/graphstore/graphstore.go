// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphstore persists the knowledge graph: paragraph and entity
// nodes plus relation edges, in a SQLite database. Entity nodes carry an
// appear count maintained through mention rows, so the store can answer
// "would this entity survive if these paragraphs vanished" without
// scanning content.
package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Node kinds stored in the nodes table.
const (
	NodeParagraph = "paragraph"
	NodeEntity    = "entity"
)

const dbFile = "graph.db"

// Node is a graph node row.
type Node struct {
	ID          string
	Kind        string
	Content     string
	SourceFile  string
	RawIndex    int
	AppearCount int
}

// Edge is a relation between two entity nodes, owned by the paragraph it
// was extracted from.
type Edge struct {
	ID          string
	Subject     string
	Predicate   string
	Object      string
	ParagraphID string
}

// Store is the durable knowledge graph.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the graph store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating graph store directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating graph store schema: %w", err)
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
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			source_file TEXT,
			raw_index INTEGER,
			appear_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object_id TEXT NOT NULL,
			paragraph_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_subject ON edges(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_object ON edges(object_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_paragraph ON edges(paragraph_id)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			entity_id TEXT NOT NULL,
			paragraph_id TEXT NOT NULL,
			PRIMARY KEY (entity_id, paragraph_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_paragraph ON mentions(paragraph_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// serve plans (committed state) and applies (in-flight transaction).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasNode(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking node %s: %w", id, err)
	}
	return true, nil
}

func incidentEdgeCount(ctx context.Context, q querier, entityID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM edges WHERE subject_id = ? OR object_id = ?`,
		entityID, entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting incident edges for %s: %w", entityID, err)
	}
	return n, nil
}

func mentionCount(ctx context.Context, q querier, entityID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM mentions WHERE entity_id = ?`, entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting mentions for %s: %w", entityID, err)
	}
	return n, nil
}

// HasNode reports whether a node exists.
func (s *Store) HasNode(ctx context.Context, id string) (bool, error) {
	return hasNode(ctx, s.db, id)
}

// HasEdge reports whether an edge exists.
func (s *Store) HasEdge(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM edges WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking edge %s: %w", id, err)
	}
	return true, nil
}

// Node returns the node row for id.
func (s *Store) Node(ctx context.Context, id string) (*Node, error) {
	var (
		n        Node
		srcFile  sql.NullString
		rawIndex sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, content, source_file, raw_index, appear_count
		 FROM nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.Kind, &n.Content, &srcFile, &rawIndex, &n.AppearCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading node %s: %w", id, err)
	}
	n.SourceFile = srcFile.String
	n.RawIndex = int(rawIndex.Int64)
	return &n, nil
}

// CountNodes returns the number of nodes of one kind.
func (s *Store) CountNodes(ctx context.Context, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM nodes WHERE kind = ?`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s nodes: %w", kind, err)
	}
	return n, nil
}

// CountEdges returns the total edge count.
func (s *Store) CountEdges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return n, nil
}

// CountNodesPresent returns how many of ids exist as nodes.
func (s *Store) CountNodesPresent(ctx context.Context, ids []string) (int, error) {
	present := 0
	for _, id := range ids {
		ok, err := s.HasNode(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			present++
		}
	}
	return present, nil
}

// CountEdgesPresent returns how many of ids exist as edges.
func (s *Store) CountEdgesPresent(ctx context.Context, ids []string) (int, error) {
	present := 0
	for _, id := range ids {
		ok, err := s.HasEdge(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			present++
		}
	}
	return present, nil
}

// NodeIDs returns every node id.
func (s *Store) NodeIDs(ctx context.Context) ([]string, error) {
	return s.idColumn(ctx, `SELECT id FROM nodes`)
}

// EdgeIDs returns every edge id.
func (s *Store) EdgeIDs(ctx context.Context) ([]string, error) {
	return s.idColumn(ctx, `SELECT id FROM edges`)
}

func (s *Store) idColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SampleNodes returns up to n nodes of one kind with content previews, in
// stable id order.
func (s *Store) SampleNodes(ctx context.Context, kind string, n int) ([]types.Preview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM nodes WHERE kind = ? ORDER BY id LIMIT ?`, kind, n)
	if err != nil {
		return nil, fmt.Errorf("sampling %s nodes: %w", kind, err)
	}
	defer rows.Close()

	var out []types.Preview
	for rows.Next() {
		var p types.Preview
		if err := rows.Scan(&p.ID, &p.Content); err != nil {
			return nil, fmt.Errorf("scanning node sample: %w", err)
		}
		p.Content = truncate(p.Content, 80)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchParagraphs returns up to limit paragraph nodes whose content
// contains substr, in stable id order.
func (s *Store) SearchParagraphs(ctx context.Context, substr string, limit int) ([]types.Preview, error) {
	pattern := "%" + escapeLike(substr) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM nodes
		 WHERE kind = ? AND content LIKE ? ESCAPE '\'
		 ORDER BY id LIMIT ?`, NodeParagraph, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching paragraphs: %w", err)
	}
	defer rows.Close()

	var out []types.Preview
	for rows.Next() {
		var p types.Preview
		if err := rows.Scan(&p.ID, &p.Content); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// EdgesForParagraphs returns every edge owned by one of the paragraphs.
func (s *Store) EdgesForParagraphs(ctx context.Context, paragraphIDs []string) ([]Edge, error) {
	var out []Edge
	for _, pid := range paragraphIDs {
		edges, err := s.queryEdges(ctx, `SELECT id, subject_id, predicate, object_id, paragraph_id
			FROM edges WHERE paragraph_id = ?`, pid)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

// Edge returns the edge row for id, or nil when it does not exist.
func (s *Store) Edge(ctx context.Context, id string) (*Edge, error) {
	edges, err := s.queryEdges(ctx, `SELECT id, subject_id, predicate, object_id, paragraph_id
		FROM edges WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	return &edges[0], nil
}

// EdgesForEntity returns every edge incident to the entity.
func (s *Store) EdgesForEntity(ctx context.Context, entityID string) ([]Edge, error) {
	return s.queryEdges(ctx, `SELECT id, subject_id, predicate, object_id, paragraph_id
		FROM edges WHERE subject_id = ? OR object_id = ?`, entityID, entityID)
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.Subject, &e.Predicate, &e.Object, &e.ParagraphID); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntitiesMentionedBy maps entity ids to the subset of paragraphIDs that
// mention them.
func (s *Store) EntitiesMentionedBy(ctx context.Context, paragraphIDs []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, pid := range paragraphIDs {
		rows, err := s.db.QueryContext(ctx,
			`SELECT entity_id FROM mentions WHERE paragraph_id = ?`, pid)
		if err != nil {
			return nil, fmt.Errorf("querying mentions for %s: %w", pid, err)
		}
		for rows.Next() {
			var eid string
			if err := rows.Scan(&eid); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning mention: %w", err)
			}
			out[eid] = append(out[eid], pid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// MentionCount returns how many paragraphs mention the entity.
func (s *Store) MentionCount(ctx context.Context, entityID string) (int, error) {
	return mentionCount(ctx, s.db, entityID)
}

// IncidentEdgeCount returns how many edges touch the entity.
func (s *Store) IncidentEdgeCount(ctx context.Context, entityID string) (int, error) {
	return incidentEdgeCount(ctx, s.db, entityID)
}

// VerifyEdgeEndpoints checks the graph invariant that every edge
// references existing nodes. It returns a ConsistencyError naming the
// first dangling edge found.
func (s *Store) VerifyEdgeEndpoints(ctx context.Context) error {
	var edgeID string
	err := s.db.QueryRowContext(ctx,
		`SELECT e.id FROM edges e
		 LEFT JOIN nodes sn ON sn.id = e.subject_id
		 LEFT JOIN nodes obn ON obn.id = e.object_id
		 WHERE sn.id IS NULL OR obn.id IS NULL
		 LIMIT 1`).Scan(&edgeID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("verifying edge endpoints: %w", err)
	}
	return types.Consistencyf("edge %s references a missing node", edgeID)
}

// Tx wraps a write transaction against the graph store. Reads through a
// Tx observe the in-flight mutation, which the orphan second pass relies
// on.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning graph store transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// InsertParagraph stores a paragraph node.
func (t *Tx) InsertParagraph(ctx context.Context, id, content, sourceFile string, rawIndex int) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO nodes (id, kind, content, source_file, raw_index, appear_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		id, NodeParagraph, content, sourceFile, rawIndex)
	if err != nil {
		return fmt.Errorf("inserting paragraph %s: %w", id, err)
	}
	return nil
}

// EnsureEntity creates the entity node if absent and reports whether it
// was created. Appear counts start at zero and move with mentions.
func (t *Tx) EnsureEntity(ctx context.Context, id, name string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO nodes (id, kind, content, appear_count)
		 VALUES (?, ?, ?, 0)`,
		id, NodeEntity, name)
	if err != nil {
		return false, fmt.Errorf("ensuring entity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensuring entity %s: %w", id, err)
	}
	return n > 0, nil
}

// AddMention records that a paragraph mentions an entity and bumps the
// entity's appear count. Re-recording the same pair is a no-op, which
// keeps re-imports idempotent.
func (t *Tx) AddMention(ctx context.Context, entityID, paragraphID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO mentions (entity_id, paragraph_id) VALUES (?, ?)`,
		entityID, paragraphID)
	if err != nil {
		return false, fmt.Errorf("adding mention %s -> %s: %w", paragraphID, entityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding mention %s -> %s: %w", paragraphID, entityID, err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE nodes SET appear_count = appear_count + 1 WHERE id = ?`, entityID); err != nil {
		return false, fmt.Errorf("incrementing appear count for %s: %w", entityID, err)
	}
	return true, nil
}

// InsertEdge stores a relation edge.
func (t *Tx) InsertEdge(ctx context.Context, e Edge) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO edges (id, subject_id, predicate, object_id, paragraph_id)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Subject, e.Predicate, e.Object, e.ParagraphID)
	if err != nil {
		return fmt.Errorf("inserting edge %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEdge removes an edge. It reports whether a row existed.
func (t *Tx) DeleteEdge(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting edge %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting edge %s: %w", id, err)
	}
	return n > 0, nil
}

// DeleteNode removes a node. It reports whether a row existed.
func (t *Tx) DeleteNode(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting node %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting node %s: %w", id, err)
	}
	return n > 0, nil
}

// RemoveMentionsForParagraph deletes all mention rows for a paragraph and
// decrements the appear count of each affected entity. It returns the
// affected entity ids.
func (t *Tx) RemoveMentionsForParagraph(ctx context.Context, paragraphID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT entity_id FROM mentions WHERE paragraph_id = ?`, paragraphID)
	if err != nil {
		return nil, fmt.Errorf("listing mentions for %s: %w", paragraphID, err)
	}
	var entities []string
	for rows.Next() {
		var eid string
		if err := rows.Scan(&eid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning mention: %w", err)
		}
		entities = append(entities, eid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM mentions WHERE paragraph_id = ?`, paragraphID); err != nil {
		return nil, fmt.Errorf("removing mentions for %s: %w", paragraphID, err)
	}
	for _, eid := range entities {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE nodes SET appear_count = appear_count - 1
			 WHERE id = ? AND appear_count > 0`, eid); err != nil {
			return nil, fmt.Errorf("decrementing appear count for %s: %w", eid, err)
		}
	}
	return entities, nil
}

// RemoveMentionsForEntity deletes all mention rows for an entity. Used
// when the entity node itself is being removed.
func (t *Tx) RemoveMentionsForEntity(ctx context.Context, entityID string) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM mentions WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("removing mentions for entity %s: %w", entityID, err)
	}
	return nil
}

// MentionCount returns how many paragraphs mention the entity, observing
// the in-flight transaction.
func (t *Tx) MentionCount(ctx context.Context, entityID string) (int, error) {
	return mentionCount(ctx, t.tx, entityID)
}

// IncidentEdgeCount returns how many edges touch the entity, observing
// the in-flight transaction.
func (t *Tx) IncidentEdgeCount(ctx context.Context, entityID string) (int, error) {
	return incidentEdgeCount(ctx, t.tx, entityID)
}

// HasNode reports node existence, observing the in-flight transaction.
func (t *Tx) HasNode(ctx context.Context, id string) (bool, error) {
	return hasNode(ctx, t.tx, id)
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
