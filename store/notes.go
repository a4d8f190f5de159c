package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Note is the free-text note attached to one document.
type Note struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// SaveNote creates or replaces the note of a document. It returns
// ErrNotFound when the document does not exist.
func (s *Store) SaveNote(ctx context.Context, documentID, content string) (*Note, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (document_id, content) VALUES (?, ?)
		ON CONFLICT(document_id) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP
	`, documentID, content); err != nil {
		return nil, fmt.Errorf("saving note: %w", err)
	}
	return s.Note(ctx, documentID)
}

// Note returns the note of a document, or an empty note when none was
// saved.
func (s *Store) Note(ctx context.Context, documentID string) (*Note, error) {
	n := &Note{DocumentID: documentID}
	err := s.db.QueryRowContext(ctx,
		"SELECT content, created_at, updated_at FROM notes WHERE document_id = ?", documentID,
	).Scan(&n.Content, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return n, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// MoveNote reattaches the note of one document to another, replacing any
// note the target already has.
func (s *Store) MoveNote(ctx context.Context, fromID, toID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notes (document_id, content, created_at, updated_at)
			SELECT ?, content, created_at, updated_at FROM notes WHERE document_id = ?
			ON CONFLICT(document_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
		`, toID, fromID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE document_id = ?", fromID)
		return err
	})
}
