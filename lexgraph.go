// Package lexgraph is a retrieval engine for legal documents: statutes,
// judgments, doctrine and public audit reports. Documents are classified,
// segmented along their legal structure, linked by their cross-references
// and served to a chat model as a numbered, citable context.
package lexgraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/brunobiangulo/lexgraph/analysis"
	"github.com/brunobiangulo/lexgraph/answer"
	"github.com/brunobiangulo/lexgraph/cite"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/llm"
	"github.com/brunobiangulo/lexgraph/parser"
	"github.com/brunobiangulo/lexgraph/registry"
	"github.com/brunobiangulo/lexgraph/retrieval"
	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// Engine is the main entry point for the legal RAG engine.
type Engine interface {
	// ClassifyDocument detects the document family. Pure.
	ClassifyDocument(title, text string) classify.Result

	// SegmentDocument classifies, segments and extracts the citation graph
	// of a text without persisting anything.
	SegmentDocument(documentID, title, text string) *analysis.Result

	// RetrieveGraph runs seed-and-expand retrieval over stored documents.
	RetrieveGraph(ctx context.Context, req retrieval.GraphRequest) (*retrieval.GraphResult, error)

	// RetrieveFlat runs fused vector and full-text retrieval over stored
	// segments.
	RetrieveFlat(ctx context.Context, req retrieval.FlatRequest) (*retrieval.FlatResult, error)

	// Ingest parses, segments, embeds and stores a file. Returns the
	// document ID. A file whose content hash is already stored is skipped.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (string, error)

	// IngestText stores a text as a document, like Ingest.
	IngestText(ctx context.Context, title, text string, opts ...IngestOption) (string, error)

	// Update re-checks a file-backed document by hash. Re-ingests if changed.
	Update(ctx context.Context, documentID string) (bool, error)

	// UpdateAll checks all file-backed documents for changes.
	UpdateAll(ctx context.Context) ([]UpdateResult, error)

	// Ask retrieves a context for question and composes a cited answer.
	Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error)

	// PreviewSegments re-analyzes the first maxPreviewChars runes of a
	// stored document.
	PreviewSegments(ctx context.Context, documentID string, maxPreviewChars int) (*analysis.Result, error)

	// GetDocument returns one document with its text.
	GetDocument(ctx context.Context, documentID string) (*store.Document, error)

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]store.Document, error)

	// Delete removes a document and all associated data.
	Delete(ctx context.Context, documentID string) error

	// RecentQueries returns the latest Ask log entries.
	RecentQueries(ctx context.Context, limit int) ([]store.QueryLog, error)

	// DocumentQueries returns the Ask log entries scoped to a document,
	// newest first.
	DocumentQueries(ctx context.Context, documentID string, limit, offset int) ([]store.QueryLog, error)

	// DeleteDocumentQueries clears the Ask log entries scoped to a document.
	DeleteDocumentQueries(ctx context.Context, documentID string) (int64, error)

	// Notes returns the note attached to a document; empty when none was
	// saved.
	Notes(ctx context.Context, documentID string) (*store.Note, error)

	// SaveNotes creates or replaces the note attached to a document.
	SaveNotes(ctx context.Context, documentID, content string) (*store.Note, error)

	// MindMap asks the chat model for a hierarchical outline of documents.
	MindMap(ctx context.Context, documentIDs []string) (*MindMapNode, error)

	// ReloadRegistry re-reads the entity registry file and table.
	ReloadRegistry(ctx context.Context) error

	// RegistryEntries lists the aliases stored in the database table.
	RegistryEntries(ctx context.Context) ([]store.RegistryEntry, error)

	// PutRegistryEntry stores an alias in the database table and reloads
	// the registry.
	PutRegistryEntry(ctx context.Context, entry store.RegistryEntry) error

	// DeleteRegistryEntry removes an alias from the database table and
	// reloads the registry.
	DeleteRegistryEntry(ctx context.Context, alias string) error

	// Citing returns the edges of every stored document that point at ref.
	// ref may be a raw citation ("art. 1457 du Code civil") or a normalized
	// one.
	Citing(ctx context.Context, ref string, limit int) ([]graph.Edge, error)

	// Stats returns row counts of the store.
	Stats(ctx context.Context) (*store.DBStats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close stops the registry watcher and closes the store.
	Close() error
}

// Answer is the result of Ask.
type Answer struct {
	Text             string   `json:"text"`
	Status           string   `json:"status"`
	Confidence       float64  `json:"confidence"`
	Markers          []int    `json:"markers"`
	InvalidMarkers   []int    `json:"invalid_markers,omitempty"`
	Repaired         bool     `json:"repaired,omitempty"`
	Issues           []string `json:"issues,omitempty"`
	Sources          []Source `json:"sources"`
	RetrievalMethod  string   `json:"retrieval_method"`
	ModelUsed        string   `json:"model_used,omitempty"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	ElapsedMs        int64    `json:"elapsed_ms"`
}

// Source is a context block cited by an answer. Marker is its 【n】 number.
type Source struct {
	Marker      int     `json:"marker"`
	SegmentID   string  `json:"segment_id"`
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title,omitempty"`
	Role        string  `json:"role"`
	SectionPath string  `json:"section_path,omitempty"`
	Why         string  `json:"why,omitempty"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet,omitempty"`

	text string
}

// UpdateResult reports the outcome of a document update check.
type UpdateResult struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Changed    bool   `json:"changed"`
	Error      error  `json:"error,omitempty"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	title        string
	family       classify.Family
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithTitle overrides the document title. Files default to their base name.
func WithTitle(title string) IngestOption {
	return func(o *ingestOptions) { o.title = title }
}

// WithFamily skips classification and segments the document as family.
func WithFamily(family classify.Family) IngestOption {
	return func(o *ingestOptions) { o.family = family }
}

// AskOption configures Ask.
type AskOption func(*askOptions)

type askOptions struct {
	mode        string
	documentIDs []string
	maxSegments int
	expandHops  int
	topN        int
}

// WithDocuments restricts retrieval to the given documents.
func WithDocuments(ids ...string) AskOption {
	return func(o *askOptions) { o.documentIDs = ids }
}

// WithRetrievalMode selects ModeGraph or ModeFlat for this question.
func WithRetrievalMode(mode string) AskOption {
	return func(o *askOptions) { o.mode = mode }
}

// WithMaxSegments overrides the graph context size.
func WithMaxSegments(n int) AskOption {
	return func(o *askOptions) { o.maxSegments = n }
}

// WithExpandHops overrides the graph expansion depth. Negative disables
// expansion.
func WithExpandHops(n int) AskOption {
	return func(o *askOptions) { o.expandHops = n }
}

// WithTopN overrides the flat result count.
func WithTopN(n int) AskOption {
	return func(o *askOptions) { o.topN = n }
}

// Option configures New.
type Option func(*engine)

// WithProviders replaces the providers built from Config.Chat and
// Config.Embedding.
func WithProviders(chat, embed llm.Provider) Option {
	return func(e *engine) {
		e.chatLLM = chat
		e.embedLLM = embed
	}
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	chatLLM   llm.Provider
	embedLLM  llm.Provider
	parsers   *parser.Registry
	entities  *registry.Registry
	pipeline  *analysis.Pipeline
	retriever *retrieval.Engine
	composer  *answer.Composer

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// New creates a lexgraph engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	e := &engine{cfg: cfg, parsers: parser.NewRegistry()}
	for _, o := range opts {
		o(e)
	}

	var err error
	if e.chatLLM == nil {
		if e.chatLLM, err = llm.NewProvider(cfg.Chat); err != nil {
			return nil, fmt.Errorf("creating chat provider: %w", err)
		}
	}
	if e.embedLLM == nil {
		if e.embedLLM, err = llm.NewProvider(cfg.Embedding); err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	rules, err := answer.LoadRules(cfg.Answer.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Resolve database path from config (DBPath > DBName+StorageDir > default)
	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	e.store = s

	e.entities, err = registry.Load(context.Background(), cfg.Registry.Path, s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading entity registry: %w", err)
	}

	e.pipeline = analysis.New(classify.New(cfg.Classifier), segment.NewTable(e.entities),
		analysis.WithMaxChars(analysis.MaxPreviewChars))
	e.retriever = retrieval.New(s, e.embedLLM, e.pipeline, cfg.Retrieval.engineConfig())
	e.composer = answer.New(e.chatLLM, cfg.Answer.composerConfig(cfg.Chat.Model), rules)

	if cfg.Registry.Watch && cfg.Registry.Path != "" {
		ctx, cancel := context.WithCancel(context.Background())
		e.stopWatch = cancel
		e.watchDone = make(chan struct{})
		go func() {
			defer close(e.watchDone)
			if err := e.entities.Watch(ctx); err != nil {
				slog.Error("registry: watcher failed", "error", err)
			}
		}()
	}
	return e, nil
}

func (e *engine) ClassifyDocument(title, text string) classify.Result {
	return e.pipeline.Classify(title, text)
}

func (e *engine) SegmentDocument(documentID, title, text string) *analysis.Result {
	return e.pipeline.Segment(documentID, title, text)
}

func (e *engine) RetrieveGraph(ctx context.Context, req retrieval.GraphRequest) (*retrieval.GraphResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	res, err := e.retriever.RetrieveGraph(ctx, e.graphDefaults(req))
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (e *engine) RetrieveFlat(ctx context.Context, req retrieval.FlatRequest) (*retrieval.FlatResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if req.TopN <= 0 {
		req.TopN = e.cfg.Retrieval.TopN
	}
	res, err := e.retriever.RetrieveFlat(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (e *engine) graphDefaults(req retrieval.GraphRequest) retrieval.GraphRequest {
	if req.MaxSegments <= 0 {
		req.MaxSegments = e.cfg.Retrieval.MaxSegments
	}
	if req.ExpandHops == 0 {
		req.ExpandHops = e.cfg.Retrieval.ExpandHops
	}
	if req.MaxCharsPerSegment <= 0 {
		req.MaxCharsPerSegment = e.cfg.Retrieval.MaxCharsPerSegment
	}
	return req
}

// Ingest processes a file through the full pipeline.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (string, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	format := parser.FormatOf(absPath)
	p, err := e.parsers.Get(format)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}

	doc, done, err := e.prepare(ctx, hash, options)
	if err != nil || done {
		return doc.ID, err
	}
	doc.Path = absPath
	doc.Format = format
	doc.Title = options.title
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	}
	if err := e.store.UpsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("upserting document: %w", err)
	}

	slog.Info("ingest: parsing document", "file", filepath.Base(absPath), "format", format, "document_id", doc.ID)
	parseStart := time.Now()
	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		e.markFailed(ctx, doc.ID)
		return "", fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	doc.Text = parsed.Text()
	slog.Info("ingest: parsing complete",
		"document_id", doc.ID, "method", parsed.Method, "sections", len(parsed.Sections),
		"tables", len(parsed.Tables), "elapsed", time.Since(parseStart).Round(time.Millisecond))

	if strings.TrimSpace(doc.Text) == "" {
		e.markFailed(ctx, doc.ID)
		return "", fmt.Errorf("%w: %w: no text extracted from %s", ErrParsingFailed, ErrNoSegments, filepath.Base(absPath))
	}
	if err := e.analyzeAndStore(ctx, doc, options.family); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// IngestText stores text as a document.
func (e *engine) IngestText(ctx context.Context, title, text string, opts ...IngestOption) (string, error) {
	options := &ingestOptions{title: title}
	for _, o := range opts {
		o(options)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoSegments
	}

	sum := sha256.Sum256([]byte(text))
	doc, done, err := e.prepare(ctx, hex.EncodeToString(sum[:]), options)
	if err != nil || done {
		return doc.ID, err
	}
	doc.Title = options.title
	doc.Format = "txt"
	doc.Text = text
	if err := e.analyzeAndStore(ctx, doc, options.family); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// prepare looks up hash. done is true when a ready document with the same
// content exists and reparsing was not forced; doc is then that document.
// Otherwise doc carries the ID to write, reusing a previous attempt's.
func (e *engine) prepare(ctx context.Context, hash string, options *ingestOptions) (store.Document, bool, error) {
	existing, err := e.store.GetDocumentByHash(ctx, hash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Document{ID: uuid.NewString(), ContentHash: hash, Status: store.StatusPending}, false, nil
	case err != nil:
		return store.Document{}, false, fmt.Errorf("looking up content hash: %w", err)
	}
	if existing.Status == store.StatusReady && !options.forceReparse {
		slog.Info("ingest: content unchanged, skipping", "document_id", existing.ID)
		return *existing, true, nil
	}
	return store.Document{ID: existing.ID, ContentHash: hash, Status: store.StatusPending, CreatedAt: existing.CreatedAt}, false, nil
}

// analyzeAndStore segments doc.Text, embeds every segment and writes the
// document, segments, vectors and edges in one transaction.
func (e *engine) analyzeAndStore(ctx context.Context, doc store.Document, family classify.Family) error {
	start := time.Now()
	var res *analysis.Result
	if family.Valid() {
		res = e.pipeline.SegmentAs(family, doc.ID, doc.Title, doc.Text)
	} else {
		res = e.pipeline.Segment(doc.ID, doc.Title, doc.Text)
	}
	doc.DetectedType = string(res.Type)
	slog.Info("ingest: segmented",
		"document_id", doc.ID, "type", res.Type, "segments", len(res.Segments),
		"edges", len(res.Edges), "unresolved", len(res.Unresolved))

	texts := make([]string, len(res.Segments))
	for i, s := range res.Segments {
		texts[i] = embedText(s)
	}
	embedStart := time.Now()
	vectors, err := llm.EmbedBatched(ctx, e.embedLLM, texts,
		e.cfg.Retrieval.EmbedBatchSize, e.cfg.Retrieval.EmbedConcurrency)
	if err != nil {
		e.markFailed(ctx, doc.ID)
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	slog.Info("ingest: embeddings complete",
		"document_id", doc.ID, "segments", len(texts),
		"elapsed", time.Since(embedStart).Round(time.Millisecond))

	doc.Status = store.StatusReady
	if err := e.store.SaveAnalysis(ctx, doc, res.Segments, vectors, res.Edges); err != nil {
		e.markFailed(ctx, doc.ID)
		return fmt.Errorf("storing analysis: %w", err)
	}
	slog.Info("ingest: document ready",
		"document_id", doc.ID, "title", doc.Title,
		"total_elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (e *engine) markFailed(ctx context.Context, id string) {
	if err := e.store.UpdateDocumentStatus(ctx, id, store.StatusFailed); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		slog.Warn("ingest: could not mark document failed", "document_id", id, "error", err)
	}
}

const maxEmbedChars = 8000

// embedText prefixes the section path so that short articles keep their
// position in the act.
func embedText(s segment.Segment) string {
	text := s.Text
	if s.SectionPath != "" {
		text = s.SectionPath + " : " + text
	}
	return truncateForEmbed(text)
}

func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}

func (e *engine) Update(ctx context.Context, documentID string) (bool, error) {
	doc, err := e.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if doc.Path == "" {
		return false, nil
	}

	hash, err := fileHash(doc.Path)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == doc.ContentHash {
		return false, nil
	}

	// The new content gets a new document; the stale one goes, its note
	// follows.
	newID, err := e.Ingest(ctx, doc.Path, WithTitle(doc.Title))
	if err != nil {
		return false, err
	}
	if err := e.store.MoveNote(ctx, doc.ID, newID); err != nil {
		return true, fmt.Errorf("moving note: %w", err)
	}
	if err := e.store.DeleteDocument(ctx, doc.ID); err != nil {
		return true, fmt.Errorf("removing stale document: %w", err)
	}
	return true, nil
}

func (e *engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(docs))
	for _, doc := range docs {
		if doc.Path == "" {
			continue
		}
		changed, err := e.Update(ctx, doc.ID)
		results = append(results, UpdateResult{
			DocumentID: doc.ID,
			Path:       doc.Path,
			Changed:    changed,
			Error:      err,
		})
	}
	return results, nil
}

func (e *engine) PreviewSegments(ctx context.Context, documentID string, maxPreviewChars int) (*analysis.Result, error) {
	doc, err := e.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return e.pipeline.PreviewAs(classify.Family(doc.DetectedType), doc.ID, doc.Title, doc.Text, maxPreviewChars), nil
}

func (e *engine) GetDocument(ctx context.Context, documentID string) (*store.Document, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

func (e *engine) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return e.store.ListDocuments(ctx)
}

func (e *engine) Delete(ctx context.Context, documentID string) error {
	if err := e.store.DeleteDocument(ctx, documentID); err != nil {
		return mapError(err)
	}
	slog.Info("engine: document deleted", "document_id", documentID)
	return nil
}

func (e *engine) RecentQueries(ctx context.Context, limit int) ([]store.QueryLog, error) {
	return e.store.RecentQueries(ctx, limit)
}

func (e *engine) DocumentQueries(ctx context.Context, documentID string, limit, offset int) ([]store.QueryLog, error) {
	return e.store.DocumentQueries(ctx, documentID, limit, offset)
}

func (e *engine) DeleteDocumentQueries(ctx context.Context, documentID string) (int64, error) {
	n, err := e.store.DeleteDocumentQueries(ctx, documentID)
	if err != nil {
		return 0, err
	}
	slog.Info("engine: chat logs deleted", "document_id", documentID, "entries", n)
	return n, nil
}

func (e *engine) Notes(ctx context.Context, documentID string) (*store.Note, error) {
	if _, err := e.store.GetDocument(ctx, documentID); err != nil {
		return nil, mapError(err)
	}
	return e.store.Note(ctx, documentID)
}

func (e *engine) SaveNotes(ctx context.Context, documentID, content string) (*store.Note, error) {
	n, err := e.store.SaveNote(ctx, documentID, content)
	if err != nil {
		return nil, mapError(err)
	}
	return n, nil
}

func (e *engine) ReloadRegistry(ctx context.Context) error {
	return e.entities.Reload(ctx)
}

func (e *engine) RegistryEntries(ctx context.Context) ([]store.RegistryEntry, error) {
	return e.store.RegistryEntries(ctx)
}

func (e *engine) PutRegistryEntry(ctx context.Context, entry store.RegistryEntry) error {
	entry.Alias = strings.TrimSpace(entry.Alias)
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Alias == "" || entry.Name == "" {
		return fmt.Errorf("%w: alias and name are required", ErrInvalidInput)
	}
	if err := e.store.UpsertRegistryEntry(ctx, entry); err != nil {
		return fmt.Errorf("storing alias: %w", err)
	}
	slog.Info("engine: registry alias stored", "alias", entry.Alias, "name", entry.Name)
	return e.entities.Reload(ctx)
}

func (e *engine) DeleteRegistryEntry(ctx context.Context, alias string) error {
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("%w: alias is required", ErrInvalidInput)
	}
	if err := e.store.DeleteRegistryEntry(ctx, alias); err != nil {
		return fmt.Errorf("deleting alias: %w", err)
	}
	slog.Info("engine: registry alias deleted", "alias", alias)
	return e.entities.Reload(ctx)
}

func (e *engine) Citing(ctx context.Context, ref string, limit int) ([]graph.Edge, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidInput)
	}
	edges, err := e.store.EdgesByRef(ctx, ref, limit)
	if err != nil || len(edges) > 0 {
		return edges, err
	}
	if norm := normalizeRef(ref); norm != ref {
		return e.store.EdgesByRef(ctx, norm, limit)
	}
	return nil, nil
}

// normalizeRef returns the normalized form of a raw citation that scans as
// exactly one reference, else the input unchanged.
func normalizeRef(ref string) string {
	if refs := cite.Scan(ref); len(refs) == 1 {
		return refs[0].Ref
	}
	return ref
}

func (e *engine) Stats(ctx context.Context) (*store.DBStats, error) {
	return e.store.DBStats(ctx)
}

func (e *engine) Store() *store.Store {
	return e.store
}

func (e *engine) Close() error {
	if e.stopWatch != nil {
		e.stopWatch()
		<-e.watchDone
	}
	return e.store.Close()
}

func (e *engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.RequestTimeout)
}

// mapError converts package errors to the engine's sentinels.
func mapError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, retrieval.ErrEmbedding):
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	case errors.Is(err, answer.ErrCompletion):
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrDocumentNotFound, err)
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return err
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
