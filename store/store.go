package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: not found")

// Document statuses.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Document represents a row in the documents table.
type Document struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Path         string `json:"path,omitempty"`
	Format       string `json:"format"`
	ContentHash  string `json:"content_hash"`
	Text         string `json:"text,omitempty"`
	DetectedType string `json:"detected_type"`
	Status       string `json:"status"`
	// Segments is filled by ListDocuments only.
	Segments  int    `json:"segments,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Store wraps the SQLite database for all lexgraph persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

const documentColumns = `id, title, COALESCE(path, ''), format, content_hash, text,
	detected_type, status, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }, d *Document) error {
	return row.Scan(&d.ID, &d.Title, &d.Path, &d.Format, &d.ContentHash, &d.Text,
		&d.DetectedType, &d.Status, &d.CreatedAt, &d.UpdatedAt)
}

// UpsertDocument inserts or updates a document row. doc.ID must be set.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	return upsertDocument(ctx, s.db, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDocument(ctx context.Context, db execer, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("upsert document: empty id")
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.DetectedType == "" {
		doc.DetectedType = "unknown"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (id, title, path, format, content_hash, text, detected_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			path = excluded.path,
			format = excluded.format,
			content_hash = excluded.content_hash,
			text = excluded.text,
			detected_type = excluded.detected_type,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.ID, doc.Title, nullString(doc.Path), doc.Format, doc.ContentHash, doc.Text,
		doc.DetectedType, doc.Status)
	return err
}

// GetDocument retrieves a document, including its text.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	err := scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id), doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByHash finds a document with identical extracted text.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	doc := &Document{}
	err := scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE content_hash = ? LIMIT 1", hash), doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first, without their text.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, COALESCE(d.path, ''), d.format, d.content_hash,
			d.detected_type, d.status, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM document_segments s WHERE s.document_id = d.id)
		FROM documents d ORDER BY d.created_at DESC, d.rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Path, &d.Format, &d.ContentHash,
			&d.DetectedType, &d.Status, &d.CreatedAt, &d.UpdatedAt, &d.Segments); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// DeleteDocument removes a document and cascades to its segments, vectors,
// FTS rows and edges.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteDocumentData(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireRow(res, id)
	})
}

// deleteDocumentData removes everything derived from a document but keeps
// the document row. vec0 tables do not honour foreign keys.
func deleteDocumentData(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_segments WHERE segment_rowid IN (
			SELECT rowid FROM document_segments WHERE document_id = ?
		)`, id); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM kg_edges WHERE src_doc_id = ?", id); err != nil {
		return fmt.Errorf("deleting edges: %w", err)
	}
	// Triggers clean up FTS.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM document_segments WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting segments: %w", err)
	}
	return nil
}

// DBStats holds row counts for the main tables.
type DBStats struct {
	Documents  int `json:"documents"`
	Segments   int `json:"segments"`
	Embeddings int `json:"embeddings"`
	Edges      int `json:"edges"`
	Aliases    int `json:"aliases"`
	Notes      int `json:"notes"`
	Queries    int `json:"queries"`
}

// DBStats returns row counts for the main tables.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM document_segments", &stats.Segments},
		{"SELECT COUNT(*) FROM vec_segments", &stats.Embeddings},
		{"SELECT COUNT(*) FROM kg_edges", &stats.Edges},
		{"SELECT COUNT(*) FROM entity_registry", &stats.Aliases},
		{"SELECT COUNT(*) FROM notes", &stats.Notes},
		{"SELECT COUNT(*) FROM query_log", &stats.Queries},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

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

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
