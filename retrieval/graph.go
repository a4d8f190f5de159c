package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/brunobiangulo/lexgraph/analysis"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/llm"
	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// Graph retrieval defaults.
const (
	DefaultMaxSegments        = 8
	DefaultExpandHops         = 1
	DefaultMaxCharsPerSegment = 1200
)

// GraphRequest configures one graph-augmented retrieval. Zero fields take
// their defaults; a negative ExpandHops disables expansion. Empty
// DocumentIDs searches every stored document.
type GraphRequest struct {
	Query              string   `json:"query"`
	DocumentIDs        []string `json:"document_ids"`
	MaxSegments        int      `json:"max_segments"`
	ExpandHops         int      `json:"expand_hops"`
	MaxCharsPerSegment int      `json:"max_chars_per_segment"`
}

func (r GraphRequest) withDefaults() GraphRequest {
	if r.MaxSegments <= 0 {
		r.MaxSegments = DefaultMaxSegments
	}
	if r.ExpandHops == 0 {
		r.ExpandHops = DefaultExpandHops
	}
	if r.MaxCharsPerSegment <= 0 {
		r.MaxCharsPerSegment = DefaultMaxCharsPerSegment
	}
	return r
}

// Selected is one segment kept in the context, with the reason it was kept:
// "seed", "edge:refersTo", "edge:refersTo(to_ref)", "edge:refersToRange" or
// "edge:incoming".
type Selected struct {
	ID          string  `json:"id"`
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title,omitempty"`
	Role        string  `json:"role"`
	SectionPath string  `json:"section_path,omitempty"`
	Sim         float64 `json:"sim"`
	Why         string  `json:"why"`
	Depth       int     `json:"depth,omitempty"`
	// Text is the full segment text, already rendered in ContextText.
	Text string `json:"-"`
}

// Seed is a top-similarity segment expansion started from.
type Seed struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Sim        float64 `json:"sim"`
}

// GraphResult is the output of RetrieveGraph. Selected[i] is the block
// marked 【i+1】 in ContextText.
type GraphResult struct {
	ContextText string     `json:"context_text"`
	Selected    []Selected `json:"selected"`
	Seeds       []Seed     `json:"seeds,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

type segKey struct{ doc, seg string }

type candidate struct {
	seg   segment.Segment
	title string
	sim   float64
}

type analyzedDoc struct {
	doc   store.Document
	res   *analysis.Result
	graph *graph.Graph
}

// SeedCount is the number of seeds for a request: between 3 and 5, within
// MaxSegments when possible, and never more than the candidates.
func SeedCount(maxSegments, candidates int) int {
	return min(max(3, min(5, maxSegments)), candidates)
}

// RetrieveGraph scores every segment of the requested documents against the
// query, keeps the best as seeds, expands them along cross-references and
// renders the numbered context. The final selection never exceeds
// MaxSegments.
func (e *Engine) RetrieveGraph(ctx context.Context, req GraphRequest) (*GraphResult, error) {
	req = req.withDefaults()
	start := time.Now()

	docs, err := e.loadDocuments(ctx, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	var (
		cands    []candidate
		index    = make(map[segKey]int)
		analyzed = make(map[string]*analyzedDoc, len(docs))
	)
	for _, d := range docs {
		res := e.analyze(d)
		analyzed[d.ID] = &analyzedDoc{doc: d, res: res, graph: res.Graph()}
		for _, s := range res.Segments {
			index[segKey{d.ID, s.ID}] = len(cands)
			cands = append(cands, candidate{seg: s, title: d.Title})
		}
	}
	if len(cands) == 0 {
		return &GraphResult{Selected: []Selected{}, Reason: ReasonNoSegments}, nil
	}

	qvec, err := e.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = truncateRunes(c.seg.Text, req.MaxCharsPerSegment)
	}
	vecs, err := llm.EmbedBatched(ctx, e.embedder, texts, e.cfg.EmbedBatchSize, e.cfg.EmbedConcurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	for i := range cands {
		cands[i].sim = cosine(qvec, vecs[i])
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return cands[order[a]].sim > cands[order[b]].sim })

	seeds := order[:SeedCount(req.MaxSegments, len(cands))]

	var picks []Selected
	picked := make(map[segKey]bool)
	pick := func(i int, why string, depth int) {
		c := cands[i]
		k := segKey{c.seg.DocumentID, c.seg.ID}
		if picked[k] {
			return
		}
		picked[k] = true
		picks = append(picks, Selected{
			ID: c.seg.ID, DocumentID: c.seg.DocumentID, Title: c.title,
			Role: string(c.seg.Role), SectionPath: c.seg.SectionPath,
			Sim: c.sim, Why: why, Depth: depth, Text: c.seg.Text,
		})
	}

	result := &GraphResult{}
	seedsByDoc := make(map[string][]string)
	var docOrder []string
	for _, i := range seeds {
		c := cands[i]
		pick(i, "seed", 0)
		result.Seeds = append(result.Seeds, Seed{ID: c.seg.ID, DocumentID: c.seg.DocumentID, Sim: c.sim})
		if _, ok := seedsByDoc[c.seg.DocumentID]; !ok {
			docOrder = append(docOrder, c.seg.DocumentID)
		}
		seedsByDoc[c.seg.DocumentID] = append(seedsByDoc[c.seg.DocumentID], c.seg.ID)
	}

	if req.ExpandHops > 0 {
		for _, docID := range docOrder {
			for _, h := range analyzed[docID].graph.Expand(seedsByDoc[docID], req.ExpandHops) {
				if i, ok := index[segKey{docID, h.ID}]; ok {
					pick(i, h.Why, h.Depth)
				}
			}
		}
	}

	sort.SliceStable(picks, func(a, b int) bool {
		as, bs := picks[a].Why == "seed", picks[b].Why == "seed"
		if as != bs {
			return as
		}
		return picks[a].Sim > picks[b].Sim
	})
	if len(picks) > req.MaxSegments {
		picks = picks[:req.MaxSegments]
	}

	blocks := make([]contextBlock, len(picks))
	for i, p := range picks {
		blocks[i] = contextBlock{
			ID: p.ID, Title: p.Title, SectionPath: p.SectionPath, Role: p.Role,
			Text: p.Text, Citations: citationsFrom(analyzed[p.DocumentID].res.Edges, p.ID),
		}
	}
	result.Selected = picks
	result.ContextText = renderContext(blocks)

	slog.Debug("retrieval: graph search complete",
		"documents", len(docs), "candidates", len(cands), "seeds", len(seeds),
		"selected", len(picks), "elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// loadDocuments fetches the requested documents with their text. Unknown
// ids are skipped.
func (e *Engine) loadDocuments(ctx context.Context, ids []string) ([]store.Document, error) {
	if len(ids) == 0 {
		list, err := e.store.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		for _, d := range list {
			ids = append(ids, d.ID)
		}
	}

	docs := make([]store.Document, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		d, err := e.store.GetDocument(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("retrieval: skipping unknown document", "document_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading document %s: %w", id, err)
		}
		docs = append(docs, *d)
	}
	return docs, nil
}

// analyze re-segments the full text of a stored document, reusing its cached
// family. Only the whole-document fallback is bounded, by the pipeline.
func (e *Engine) analyze(d store.Document) *analysis.Result {
	if family := classify.Family(d.DetectedType); family.Valid() {
		return e.pipeline.SegmentAs(family, d.ID, d.Title, d.Text)
	}
	return e.pipeline.Segment(d.ID, d.Title, d.Text)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}
