package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brunobiangulo/lexgraph/graph"
)

func insertEdges(ctx context.Context, tx *sql.Tx, documentID string, edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO kg_edges
			(id, src_doc_id, src_segment_id, rel, dst_doc_key, dst_segment_key, dst_type, to_ref, surface, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range edges {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
		// Segment targets live in the source document; other targets are
		// external references identified by to_ref alone.
		var dstDoc sql.NullString
		if e.To != "" {
			dstDoc = nullString(documentID)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, documentID, e.From, e.Type,
			dstDoc, nullString(e.To), e.DstType, nullString(e.ToRef), nullString(e.Surface),
			string(payload)); err != nil {
			return fmt.Errorf("inserting edge %s: %w", e.ID, err)
		}
	}
	return nil
}

const edgeColumns = `id, src_doc_id, src_segment_id, rel, COALESCE(dst_segment_key, ''),
	dst_type, COALESCE(to_ref, ''), COALESCE(surface, '')`

func scanEdges(rows *sql.Rows) ([]graph.Edge, error) {
	defer rows.Close()
	edges := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.From, &e.Type, &e.To,
			&e.DstType, &e.ToRef, &e.Surface); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Edges returns every edge extracted from a document.
func (s *Store) Edges(ctx context.Context, documentID string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+edgeColumns+" FROM kg_edges WHERE src_doc_id = ? ORDER BY rowid", documentID)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

// EdgesFrom returns the edges whose source is one of segmentIDs in the given
// document.
func (s *Store) EdgesFrom(ctx context.Context, documentID string, segmentIDs []string) ([]graph.Edge, error) {
	if len(segmentIDs) == 0 {
		return []graph.Edge{}, nil
	}
	args := make([]any, 0, len(segmentIDs)+1)
	args = append(args, documentID)
	for _, id := range segmentIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+edgeColumns+" FROM kg_edges WHERE src_doc_id = ? AND src_segment_id IN ("+
			placeholders(len(segmentIDs))+") ORDER BY rowid", args...)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

// EdgesByRef returns edges from any document that point at the normalized
// reference, e.g. every segment citing "2017 CSC 45".
func (s *Store) EdgesByRef(ctx context.Context, toRef string, limit int) ([]graph.Edge, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+edgeColumns+" FROM kg_edges WHERE to_ref = ? ORDER BY rowid LIMIT ?", toRef, limit)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}
