package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/lexgraph/analysis"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/llm"
	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// ReasonNoSegments marks an empty result: no documents or no segments to
// search. It is not an error.
const ReasonNoSegments = "no_segments"

// DefaultTopN is the flat retrieval result count when the request sets none.
const DefaultTopN = 5

// ErrEmbedding wraps every embedding provider failure.
var ErrEmbedding = errors.New("retrieval: embedding failed")

// Store is the persistence the retrievers read from.
type Store interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
	VectorSearch(ctx context.Context, embedding []float32, k int, f store.SearchFilter) ([]store.SearchHit, error)
	FTSSearch(ctx context.Context, query string, limit int, f store.SearchFilter) ([]store.SearchHit, error)
	EdgesFrom(ctx context.Context, documentID string, segmentIDs []string) ([]graph.Edge, error)
}

// Config holds retrieval engine configuration.
type Config struct {
	WeightVector     float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS        float64 `json:"weight_fts" yaml:"weight_fts"`
	EmbedBatchSize   int     `json:"embed_batch_size" yaml:"embed_batch_size"`
	EmbedConcurrency int     `json:"embed_concurrency" yaml:"embed_concurrency"`
}

// DefaultConfig returns equal fusion weights and the llm batch defaults.
func DefaultConfig() Config {
	return Config{
		WeightVector:     1.0,
		WeightFTS:        1.0,
		EmbedBatchSize:   llm.DefaultEmbedBatchSize,
		EmbedConcurrency: llm.DefaultEmbedConcurrency,
	}
}

// Engine runs the graph-augmented and the flat retrievers.
type Engine struct {
	store    Store
	embedder llm.Provider
	pipeline *analysis.Pipeline
	cfg      Config
}

// New creates a retrieval engine. Zero config fields take their defaults
// and a nil pipeline uses analysis.New with the fallback segment bounded to
// analysis.MaxPreviewChars.
func New(s Store, embedder llm.Provider, pipeline *analysis.Pipeline, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.WeightVector == 0 && cfg.WeightFTS == 0 {
		cfg.WeightVector, cfg.WeightFTS = def.WeightVector, def.WeightFTS
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = def.EmbedBatchSize
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = def.EmbedConcurrency
	}
	if pipeline == nil {
		pipeline = analysis.New(nil, nil, analysis.WithMaxChars(analysis.MaxPreviewChars))
	}
	return &Engine{store: s, embedder: embedder, pipeline: pipeline, cfg: cfg}
}

// Filters restrict flat retrieval. Empty fields do not filter.
type Filters struct {
	DocumentIDs []string          `json:"document_ids,omitempty"`
	Types       []classify.Family `json:"types,omitempty"`
	Roles       []segment.Role    `json:"roles,omitempty"`
}

// search converts f to the store filter applied inside both searches.
func (f Filters) search() store.SearchFilter {
	sf := store.SearchFilter{DocumentIDs: f.DocumentIDs}
	for _, t := range f.Types {
		sf.Families = append(sf.Families, string(t))
	}
	for _, r := range f.Roles {
		sf.Roles = append(sf.Roles, string(r))
	}
	return sf
}

// FlatRequest configures one flat retrieval.
type FlatRequest struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters"`
	TopN    int     `json:"top_n"`
}

// FlatHit is a returned segment with its citations.
type FlatHit struct {
	store.SearchHit
	Methods   []string     `json:"methods"`
	Citations []graph.Edge `json:"citations"`
}

// FlatResult is the output of RetrieveFlat.
type FlatResult struct {
	ContextText string       `json:"context_text"`
	Segments    []FlatHit    `json:"segments"`
	Citations   []graph.Edge `json:"citations"`
	Reason      string       `json:"reason,omitempty"`
	Trace       *SearchTrace `json:"trace,omitempty"`
}

// SearchTrace records the breakdown of a flat retrieval.
type SearchTrace struct {
	VecResults    int     `json:"vec_results"`
	FTSResults    int     `json:"fts_results"`
	FusedResults  int     `json:"fused_results"`
	VecWeight     float64 `json:"vec_weight"`
	FTSWeight     float64 `json:"fts_weight"`
	FTSQuery      string  `json:"fts_query"`
	Intent        Intent  `json:"intent"`
	IntentRelaxed bool    `json:"intent_relaxed,omitempty"`
	ElapsedMs     int64   `json:"elapsed_ms"`
}

// RetrieveFlat runs vector KNN and FTS5 concurrently over the segments
// passing the filters, fuses them with weighted RRF, applies the detected
// intent and keeps the first TopN segments. An intent that would filter out
// every result is dropped rather than returning nothing. An embedding
// failure fails the request; a full-text failure alone only narrows it to
// vector hits.
func (e *Engine) RetrieveFlat(ctx context.Context, req FlatRequest) (*FlatResult, error) {
	if req.TopN <= 0 {
		req.TopN = DefaultTopN
	}
	start := time.Now()
	trace := &SearchTrace{VecWeight: e.cfg.WeightVector, FTSWeight: e.cfg.WeightFTS}
	if len(req.Filters.Types) == 0 && len(req.Filters.Roles) == 0 {
		trace.Intent = detectIntent(req.Query)
	}
	trace.FTSQuery = sanitizeFTSQuery(req.Query)

	// Intent narrowing applies after fusion, so over-fetch.
	pool := max(req.TopN*8, 40)
	filter := req.Filters.search()

	var (
		g                errgroup.Group
		vecHits, ftsHits []store.SearchHit
		vecErr, ftsErr   error
	)
	g.Go(func() error {
		vecHits, vecErr = e.vectorSearch(ctx, req.Query, pool, filter)
		return nil
	})
	g.Go(func() error {
		if trace.FTSQuery == "" {
			return nil
		}
		ftsHits, ftsErr = e.store.FTSSearch(ctx, trace.FTSQuery, pool, filter)
		return nil
	})
	_ = g.Wait()

	if vecErr != nil {
		return nil, fmt.Errorf("vector search: %w", vecErr)
	}
	if ftsErr != nil {
		if len(vecHits) == 0 {
			return nil, fmt.Errorf("fts search: %w", ftsErr)
		}
		slog.Warn("retrieval: fts search failed", "error", ftsErr)
	}
	trace.VecResults = len(vecHits)
	trace.FTSResults = len(ftsHits)

	fused, info := fuseRRF(vecHits, ftsHits, e.cfg.WeightVector, e.cfg.WeightFTS, 0)
	trace.FusedResults = len(fused)

	kept := fused
	if !trace.Intent.Empty() {
		var narrowed []store.SearchHit
		for _, h := range kept {
			if trace.Intent.Match(classify.Family(h.Family), segment.Role(h.Role)) {
				narrowed = append(narrowed, h)
			}
		}
		if len(narrowed) > 0 {
			kept = narrowed
		} else {
			trace.IntentRelaxed = true
		}
	}
	if len(kept) > req.TopN {
		kept = kept[:req.TopN]
	}

	res := &FlatResult{Segments: []FlatHit{}, Citations: []graph.Edge{}, Trace: trace}
	if len(kept) == 0 {
		res.Reason = ReasonNoSegments
		trace.ElapsedMs = time.Since(start).Milliseconds()
		return res, nil
	}

	edges, err := e.citationsFor(ctx, kept)
	if err != nil {
		return nil, err
	}
	blocks := make([]contextBlock, len(kept))
	for i, h := range kept {
		cites := citationsFrom(edges[h.DocumentID], h.SegmentID)
		res.Segments = append(res.Segments, FlatHit{
			SearchHit: h,
			Methods:   info[h.RowID].Methods,
			Citations: cites,
		})
		res.Citations = append(res.Citations, cites...)
		blocks[i] = contextBlock{
			ID: h.SegmentID, Title: h.Title, SectionPath: h.SectionPath,
			Role: h.Role, Text: h.Text, Citations: cites,
		}
	}
	res.ContextText = renderContext(blocks)
	trace.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("retrieval: flat search complete",
		"vec_results", trace.VecResults, "fts_results", trace.FTSResults,
		"returned", len(res.Segments), "intent", trace.Intent.Names,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// citationsFor loads the edges of the given hits, grouped by document.
func (e *Engine) citationsFor(ctx context.Context, hits []store.SearchHit) (map[string][]graph.Edge, error) {
	byDoc := make(map[string][]string)
	var order []string
	for _, h := range hits {
		if _, ok := byDoc[h.DocumentID]; !ok {
			order = append(order, h.DocumentID)
		}
		byDoc[h.DocumentID] = append(byDoc[h.DocumentID], h.SegmentID)
	}
	out := make(map[string][]graph.Edge, len(order))
	for _, docID := range order {
		edges, err := e.store.EdgesFrom(ctx, docID, byDoc[docID])
		if err != nil {
			return nil, fmt.Errorf("loading edges for %s: %w", docID, err)
		}
		out[docID] = edges
	}
	return out, nil
}

// vectorSearch embeds the query and searches vec_segments.
func (e *Engine) vectorSearch(ctx context.Context, query string, k int, f store.SearchFilter) ([]store.SearchHit, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.store.VectorSearch(ctx, vec, k, f)
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrEmbedding)
	}
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrEmbedding)
	}
	return vecs[0], nil
}
