package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Uploaded documents with hash-based duplicate detection
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    path TEXT,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    text TEXT NOT NULL,
    detected_type TEXT NOT NULL DEFAULT 'unknown',
    status TEXT DEFAULT 'pending',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Typed legal segments, in emission order
CREATE TABLE IF NOT EXISTS document_segments (
    rowid INTEGER PRIMARY KEY,
    id TEXT NOT NULL,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    role TEXT NOT NULL,
    section_path TEXT,
    heading TEXT,
    text TEXT NOT NULL,
    metadata JSON,
    position INTEGER NOT NULL,
    UNIQUE(document_id, id)
);

-- Segment embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_segments USING vec0(
    segment_rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS segments_fts USING fts5(
    text,
    heading,
    section_path,
    content='document_segments',
    content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS segments_ai AFTER INSERT ON document_segments BEGIN
    INSERT INTO segments_fts(rowid, text, heading, section_path)
    VALUES (new.rowid, new.text, new.heading, new.section_path);
END;
CREATE TRIGGER IF NOT EXISTS segments_ad AFTER DELETE ON document_segments BEGIN
    INSERT INTO segments_fts(segments_fts, rowid, text, heading, section_path)
    VALUES ('delete', old.rowid, old.text, old.heading, old.section_path);
END;
CREATE TRIGGER IF NOT EXISTS segments_au AFTER UPDATE ON document_segments BEGIN
    INSERT INTO segments_fts(segments_fts, rowid, text, heading, section_path)
    VALUES ('delete', old.rowid, old.text, old.heading, old.section_path);
    INSERT INTO segments_fts(rowid, text, heading, section_path)
    VALUES (new.rowid, new.text, new.heading, new.section_path);
END;

-- Citation and cross-reference graph
CREATE TABLE IF NOT EXISTS kg_edges (
    id TEXT PRIMARY KEY,
    src_doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    src_segment_id TEXT NOT NULL,
    rel TEXT NOT NULL,
    dst_doc_key TEXT,
    dst_segment_key TEXT,
    dst_type TEXT NOT NULL,
    to_ref TEXT,
    surface TEXT,
    payload_json JSON
);

-- Operator-maintained entity aliases, merged with the registry file
CREATE TABLE IF NOT EXISTS entity_registry (
    alias TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    sector TEXT
);

-- Question audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    query TEXT NOT NULL,
    answer TEXT,
    status TEXT,
    sources JSON,
    retrieval_method TEXT,
    model_used TEXT,
    prompt_tokens INTEGER DEFAULT 0,
    completion_tokens INTEGER DEFAULT 0,
    total_tokens INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_segments_document ON document_segments(document_id);
CREATE INDEX IF NOT EXISTS idx_segments_role ON document_segments(role);
CREATE INDEX IF NOT EXISTS idx_edges_src ON kg_edges(src_doc_id, src_segment_id);
CREATE INDEX IF NOT EXISTS idx_edges_rel ON kg_edges(rel);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`, embeddingDim)
}
