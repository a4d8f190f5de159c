package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/segment"
)

// SearchHit is a segment returned by vector or full-text search.
type SearchHit struct {
	RowID       int64   `json:"-"`
	DocumentID  string  `json:"document_id"`
	SegmentID   string  `json:"id"`
	Title       string  `json:"title"`
	Family      string  `json:"type"`
	Role        string  `json:"role"`
	SectionPath string  `json:"section_path,omitempty"`
	Heading     string  `json:"heading,omitempty"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}

// SaveAnalysis replaces everything derived from doc in one transaction:
// the document row, its segments with their FTS rows, the segment vectors
// and the edges. vectors is indexed like segs; a nil or short slice stores
// no vector for the corresponding segment.
func (s *Store) SaveAnalysis(ctx context.Context, doc Document, segs []segment.Segment, vectors [][]float32, edges []graph.Edge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertDocument(ctx, tx, doc); err != nil {
			return fmt.Errorf("upserting document: %w", err)
		}
		if err := deleteDocumentData(ctx, tx, doc.ID); err != nil {
			return err
		}

		segStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO document_segments (id, document_id, type, role, section_path, heading, text, metadata, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer segStmt.Close()

		vecStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vec_segments (segment_rowid, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()

		for i, seg := range segs {
			meta, err := json.Marshal(seg.Meta)
			if err != nil {
				return fmt.Errorf("segment %s metadata: %w", seg.ID, err)
			}
			res, err := segStmt.ExecContext(ctx, seg.ID, doc.ID, string(seg.Family), string(seg.Role),
				nullString(seg.SectionPath), nullString(seg.Heading), seg.Text, string(meta), i)
			if err != nil {
				return fmt.Errorf("inserting segment %s: %w", seg.ID, err)
			}
			if i >= len(vectors) || len(vectors[i]) == 0 {
				continue
			}
			if len(vectors[i]) != s.embeddingDim {
				return fmt.Errorf("segment %s: embedding has %d dimensions, want %d",
					seg.ID, len(vectors[i]), s.embeddingDim)
			}
			rowID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := vecStmt.ExecContext(ctx, rowID, serializeFloat32(vectors[i])); err != nil {
				return fmt.Errorf("inserting vector for %s: %w", seg.ID, err)
			}
		}

		return insertEdges(ctx, tx, doc.ID, edges)
	})
}

// Segments returns a document's segments in emission order.
func (s *Store) Segments(ctx context.Context, documentID string) ([]segment.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, type, role, COALESCE(section_path, ''), COALESCE(heading, ''), text, metadata
		FROM document_segments WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segs := []segment.Segment{}
	for rows.Next() {
		var (
			seg          segment.Segment
			family, role string
			meta         sql.NullString
		)
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &family, &role,
			&seg.SectionPath, &seg.Heading, &seg.Text, &meta); err != nil {
			return nil, err
		}
		seg.Family = classify.Family(family)
		seg.Role = segment.Role(role)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &seg.Meta); err != nil {
				return nil, fmt.Errorf("segment %s metadata: %w", seg.ID, err)
			}
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

const hitColumns = `s.rowid, s.document_id, s.id, d.title, s.type, s.role,
	COALESCE(s.section_path, ''), COALESCE(s.heading, ''), s.text`

func scanHit(rows *sql.Rows, extra *float64) (SearchHit, error) {
	var h SearchHit
	err := rows.Scan(extra, &h.RowID, &h.DocumentID, &h.SegmentID, &h.Title, &h.Family,
		&h.Role, &h.SectionPath, &h.Heading, &h.Text)
	return h, err
}

// SearchFilter restricts VectorSearch and FTSSearch before ranking. Empty
// fields do not filter.
type SearchFilter struct {
	DocumentIDs []string
	Families    []string
	Roles       []string
}

// Empty reports whether f filters nothing.
func (f SearchFilter) Empty() bool {
	return len(f.DocumentIDs) == 0 && len(f.Families) == 0 && len(f.Roles) == 0
}

// Match reports whether a hit passes f.
func (f SearchFilter) Match(h SearchHit) bool {
	return (len(f.DocumentIDs) == 0 || slices.Contains(f.DocumentIDs, h.DocumentID)) &&
		(len(f.Families) == 0 || slices.Contains(f.Families, h.Family)) &&
		(len(f.Roles) == 0 || slices.Contains(f.Roles, h.Role))
}

// clause renders f as SQL conditions over document_segments aliased s, each
// prefixed with AND.
func (f SearchFilter) clause() (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	in := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		sb.WriteString(" AND " + col + " IN (?" + strings.Repeat(", ?", len(vals)-1) + ")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	in("s.document_id", f.DocumentIDs)
	in("s.type", f.Families)
	in("s.role", f.Roles)
	return sb.String(), args
}

// VectorSearch returns the k segments nearest to queryEmbedding among those
// passing f. Without a filter it runs a vec0 KNN query; with one it ranks
// the filtered segments by exact L2 distance.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int, f SearchFilter) ([]SearchHit, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if f.Empty() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT v.distance, `+hitColumns+`
			FROM vec_segments v
			JOIN document_segments s ON s.rowid = v.segment_rowid
			JOIN documents d ON d.id = s.document_id
			WHERE v.embedding MATCH ? AND k = ?
			ORDER BY v.distance
		`, serializeFloat32(queryEmbedding), k)
	} else {
		cond, args := f.clause()
		args = append([]any{serializeFloat32(queryEmbedding)}, args...)
		args = append(args, k)
		rows, err = s.db.QueryContext(ctx, `
			SELECT vec_distance_l2(v.embedding, ?) AS distance, `+hitColumns+`
			FROM document_segments s
			JOIN vec_segments v ON v.segment_rowid = s.rowid
			JOIN documents d ON d.id = s.document_id
			WHERE 1 = 1`+cond+`
			ORDER BY distance
			LIMIT ?
		`, args...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var distance float64
		h, err := scanHit(rows, &distance)
		if err != nil {
			return nil, err
		}
		h.Score = 1.0 / (1.0 + distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// FTSSearch performs a full-text search using FTS5 BM25 ranking over the
// segments passing f. query must already be valid FTS5 syntax.
func (s *Store) FTSSearch(ctx context.Context, query string, limit int, f SearchFilter) ([]SearchHit, error) {
	cond, args := f.clause()
	args = append([]any{query}, args...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rank, `+hitColumns+`
		FROM segments_fts f
		JOIN document_segments s ON s.rowid = f.rowid
		JOIN documents d ON d.id = s.document_id
		WHERE segments_fts MATCH ?`+cond+`
		ORDER BY f.rank
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var rank float64
		h, err := scanHit(rows, &rank)
		if err != nil {
			return nil, err
		}
		// FTS5 rank is negative, lower is better.
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SegmentHasEmbedding reports whether a vector is stored for the segment.
func (s *Store) SegmentHasEmbedding(ctx context.Context, documentID, segmentID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vec_segments v
		JOIN document_segments s ON s.rowid = v.segment_rowid
		WHERE s.document_id = ? AND s.id = ?
	`, documentID, segmentID).Scan(&count)
	return count > 0, err
}
