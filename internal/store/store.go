// Package store wraps a SQLite database (with the sqlite-vec extension
// loaded) holding the decision index: one row per decision, its vector
// embedding in a vec0 virtual table, and a typed edge table for the
// relationship graph. It knows nothing about markdown or frontmatter —
// only rows, vectors, and edges.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrModelMismatch is returned by Open when the index on disk was built
// with a different embedder name/dimension than requested.
var ErrModelMismatch = errors.New("store: index was built with a different embedding model")

// Row is a persisted decision record.
type Row struct {
	Rowid       int64
	DecisionID  uint32
	UUID        string
	Title       string
	Status      string
	Date        string
	Deciders    []string
	Tags        []string
	FilePath    string
	ContentHash string
	GitCommit   string
	Body        string
}

// Edge is a persisted directed relationship between two decision ids.
type Edge struct {
	FromDecisionID uint32
	Kind           string
	ToDecisionID   uint32
}

// VectorHit is one result of a nearest-neighbor vector search.
type VectorHit struct {
	DecisionID uint32
	Distance   float64
}

// Config tunes the ANN index. BuildM, EfConstruction and EfSearch are
// recorded for documentation fidelity with HNSW-style indexes but are
// not wired into sqlite-vec's vec0, which does not expose them.
type Config struct {
	EmbeddingDim   int
	EmbedderName   string
	BuildM         int
	EfConstruction int
	EfSearch       int
}

// Store wraps the SQLite database for the decision index.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// Open opens (or creates) a SQLite database at dbPath and initializes
// the schema including the sqlite-vec virtual table. If the database
// already carries a model fingerprint that does not match cfg, Open
// returns ErrModelMismatch without modifying anything.
func Open(dbPath string, cfg Config) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging index: %w", err)
	}

	if _, err := db.Exec(schemaSQL(cfg.EmbeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(1) // single-writer; matches the file-lock discipline above the store
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: cfg.EmbeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.checkOrSetFingerprint(context.Background(), cfg); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) checkOrSetFingerprint(ctx context.Context, cfg Config) error {
	var name, dim string
	nameErr := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'embedder_name'").Scan(&name)
	dimErr := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'embedder_dim'").Scan(&dim)

	if errors.Is(nameErr, sql.ErrNoRows) || errors.Is(dimErr, sql.ErrNoRows) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES ('embedder_name', ?), ('embedder_dim', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, cfg.EmbedderName, fmt.Sprintf("%d", cfg.EmbeddingDim))
		return err
	}
	if nameErr != nil {
		return nameErr
	}
	if dimErr != nil {
		return dimErr
	}

	if name != cfg.EmbedderName || dim != fmt.Sprintf("%d", cfg.EmbeddingDim) {
		return fmt.Errorf("%w: index has %s/%s, requested %s/%d", ErrModelMismatch, name, dim, cfg.EmbedderName, cfg.EmbeddingDim)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int { return s.embeddingDim }

// UpsertDecision inserts or updates a decision row and its embedding in
// a single transaction, returning the internal rowid.
func (s *Store) UpsertDecision(ctx context.Context, r Row, embedding []float32) (int64, error) {
	var rowid int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		deciders, err := json.Marshal(r.Deciders)
		if err != nil {
			return err
		}
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO decisions (decision_id, uuid, title, status, date, deciders, tags, file_path, content_hash, git_commit, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(decision_id) DO UPDATE SET
				uuid = excluded.uuid,
				title = excluded.title,
				status = excluded.status,
				date = excluded.date,
				deciders = excluded.deciders,
				tags = excluded.tags,
				file_path = excluded.file_path,
				content_hash = excluded.content_hash,
				git_commit = excluded.git_commit,
				body = excluded.body
		`, r.DecisionID, r.UUID, r.Title, r.Status, r.Date, string(deciders), string(tags), r.FilePath, r.ContentHash, r.GitCommit, r.Body)
		if err != nil {
			return err
		}

		// LastInsertId is not updated when the upsert takes the UPDATE
		// branch, so look the rowid up by decision_id.
		if err := tx.QueryRowContext(ctx, "SELECT rowid FROM decisions WHERE decision_id = ?", r.DecisionID).Scan(&rowid); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO vec_decisions (decision_rowid, embedding) VALUES (?, ?)",
			rowid, serializeFloat32(embedding)); err != nil {
			return err
		}
		return nil
	})
	return rowid, err
}

// DeleteDecision removes a decision row, its vector, and any edges
// referencing it by decision_id.
func (s *Store) DeleteDecision(ctx context.Context, decisionID uint32) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var rowid int64
		err := tx.QueryRowContext(ctx, "SELECT rowid FROM decisions WHERE decision_id = ?", decisionID).Scan(&rowid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_decisions WHERE decision_rowid = ?", rowid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM decisions WHERE rowid = ?", rowid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE from_decision_id = ? OR to_decision_id = ?", decisionID, decisionID); err != nil {
			return err
		}
		return nil
	})
}

// ReplaceEdges deletes all outgoing edges from fromDecisionID and
// inserts the given replacement set, silently dropping any edge whose
// target is not currently indexed. This keeps every stored edge
// connecting two live decisions; a target added later requires the
// delta engine to re-invoke ReplaceEdges for the referencing decision.
func (s *Store) ReplaceEdges(ctx context.Context, fromDecisionID uint32, edges []Edge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE from_decision_id = ?", fromDecisionID); err != nil {
			return err
		}
		for _, e := range edges {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM decisions WHERE decision_id = ?", e.ToDecisionID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				continue // target not indexed; drop silently
			}
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO edges (from_decision_id, kind, to_decision_id) VALUES (?, ?, ?)",
				fromDecisionID, e.Kind, e.ToDecisionID); err != nil {
				return err
			}
		}
		return nil
	})
}

// DecisionByID fetches a single decision row by its author-assigned id.
func (s *Store) DecisionByID(ctx context.Context, decisionID uint32) (*Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rowid, decision_id, uuid, title, status, date, deciders, tags, file_path, content_hash, git_commit, body
		FROM decisions WHERE decision_id = ?
	`, decisionID)
	return scanRow(row)
}

func scanRow(row *sql.Row) (*Row, error) {
	var r Row
	var deciders, tags string
	if err := row.Scan(&r.Rowid, &r.DecisionID, &r.UUID, &r.Title, &r.Status, &r.Date, &deciders, &tags, &r.FilePath, &r.ContentHash, &r.GitCommit, &r.Body); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(deciders), &r.Deciders)
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	return &r, nil
}

// AllContentHashes returns decision_id -> content_hash for every indexed
// decision, used by the delta engine to classify filesystem state as
// added/changed/removed against the index.
func (s *Store) AllContentHashes(ctx context.Context) (map[uint32]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT decision_id, content_hash FROM decisions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint32]string)
	for rows.Next() {
		var id uint32
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// AllEdges returns every persisted edge, for building the in-memory
// adjacency used by related-decision traversal.
func (s *Store) AllEdges(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT from_decision_id, kind, to_decision_id FROM edges")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromDecisionID, &e.Kind, &e.ToDecisionID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Outgoing returns the edges whose from_decision_id matches id, in
// KindPriority-agnostic table order (callers sort if a stable tie-break
// order matters).
func (s *Store) Outgoing(ctx context.Context, id uint32) ([]Edge, error) {
	return s.queryEdges(ctx, "SELECT from_decision_id, kind, to_decision_id FROM edges WHERE from_decision_id = ?", id)
}

// Incoming returns the edges whose to_decision_id matches id.
func (s *Store) Incoming(ctx context.Context, id uint32) ([]Edge, error) {
	return s.queryEdges(ctx, "SELECT from_decision_id, kind, to_decision_id FROM edges WHERE to_decision_id = ?", id)
}

func (s *Store) queryEdges(ctx context.Context, query string, id uint32) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromDecisionID, &e.Kind, &e.ToDecisionID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// VectorSearch performs a KNN search over vec_decisions and returns the
// top-k nearest decisions by cosine distance.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.decision_id, v.distance
		FROM vec_decisions v
		JOIN decisions d ON d.rowid = v.decision_rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.DecisionID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// AllDecisionIDs returns every indexed decision id.
func (s *Store) AllDecisionIDs(ctx context.Context) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT decision_id FROM decisions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
