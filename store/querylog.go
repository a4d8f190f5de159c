package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	ID               int64    `json:"id"`
	Query            string   `json:"query"`
	Answer           string   `json:"answer"`
	Status           string   `json:"status"`
	Sources          []string `json:"sources"`
	DocumentIDs      []string `json:"document_ids,omitempty"`
	RetrievalMethod  string   `json:"retrieval_method"`
	ModelUsed        string   `json:"model_used"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	DurationMs       int64    `json:"duration_ms"`
	CreatedAt        string   `json:"created_at"`
}

// LogQuery writes an entry to the query audit log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	sourcesJSON, _ := json.Marshal(q.Sources)
	docsJSON, _ := json.Marshal(q.DocumentIDs)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (query, answer, status, sources, document_ids, retrieval_method, model_used,
			prompt_tokens, completion_tokens, total_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.Query, q.Answer, q.Status, string(sourcesJSON), string(docsJSON), q.RetrievalMethod, q.ModelUsed,
		q.PromptTokens, q.CompletionTokens, q.TotalTokens, q.DurationMs)
	return err
}

// RecentQueries returns the latest log entries, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryLogs(ctx, "", nil, limit, 0)
}

// DocumentQueries returns the log entries scoped to a document, newest
// first, skipping offset entries.
func (s *Store) DocumentQueries(ctx context.Context, documentID string, limit, offset int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryLogs(ctx, documentScope, []any{documentID}, limit, max(offset, 0))
}

// DeleteDocumentQueries removes the log entries scoped to a document and
// returns how many went.
func (s *Store) DeleteDocumentQueries(ctx context.Context, documentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM query_log"+documentScope, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const documentScope = `
	WHERE EXISTS (SELECT 1 FROM json_each(query_log.document_ids) WHERE value = ?)`

func (s *Store) queryLogs(ctx context.Context, where string, args []any, limit, offset int) ([]QueryLog, error) {
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, COALESCE(answer, ''), COALESCE(status, ''), sources, document_ids,
			COALESCE(retrieval_method, ''), COALESCE(model_used, ''),
			prompt_tokens, completion_tokens, total_tokens, COALESCE(duration_ms, 0), created_at
		FROM query_log`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []QueryLog{}
	for rows.Next() {
		var (
			q             QueryLog
			sources, docs sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.Query, &q.Answer, &q.Status, &sources, &docs,
			&q.RetrievalMethod, &q.ModelUsed, &q.PromptTokens, &q.CompletionTokens,
			&q.TotalTokens, &q.DurationMs, &q.CreatedAt); err != nil {
			return nil, err
		}
		if sources.Valid && sources.String != "" {
			_ = json.Unmarshal([]byte(sources.String), &q.Sources)
		}
		if docs.Valid && docs.String != "" {
			_ = json.Unmarshal([]byte(docs.String), &q.DocumentIDs)
		}
		logs = append(logs, q)
	}
	return logs, rows.Err()
}
