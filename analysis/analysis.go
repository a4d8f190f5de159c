// Package analysis runs the document pipeline: classify, segment with the
// family's segmenter, then extract the citation graph.
package analysis

import (
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/segment"
)

// Result is the analysis of one document.
type Result struct {
	DocumentID string            `json:"document_id"`
	Type       classify.Family   `json:"type"`
	TypeHuman  string            `json:"type_human"`
	Segments   []segment.Segment `json:"segments"`
	Edges      []graph.Edge      `json:"edges"`
	Unresolved []graph.Edge      `json:"unresolved"`
}

// Index builds the article index of the result's segments.
func (r *Result) Index() graph.ArticleIndex {
	return graph.BuildArticleIndex(r.Segments)
}

// Graph builds the traversal graph of the result.
func (r *Result) Graph() *graph.Graph {
	return graph.NewGraph(r.Edges, r.Index())
}

// Citations returns the case and statute citations made by one segment.
func (r *Result) Citations(segmentID string) []graph.Edge {
	var out []graph.Edge
	for _, e := range r.Edges {
		if e.From == segmentID && e.Citation() {
			out = append(out, e)
		}
	}
	return out
}

// Pipeline wires the classifier, the segmenter table and the extractor. All
// three are pure, so a Pipeline is safe for concurrent use.
type Pipeline struct {
	classifier *classify.Classifier
	table      segment.Table
	extractor  *graph.Extractor
	maxChars   int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxChars bounds the whole-document fallback segment.
func WithMaxChars(n int) Option {
	return func(p *Pipeline) { p.maxChars = n }
}

// New builds a Pipeline. A nil classifier uses the default configuration and
// a nil table uses segment.NewTable without an entity resolver.
func New(classifier *classify.Classifier, table segment.Table, opts ...Option) *Pipeline {
	if classifier == nil {
		classifier = classify.New(classify.DefaultConfig())
	}
	if table == nil {
		table = segment.NewTable(nil)
	}
	p := &Pipeline{
		classifier: classifier,
		table:      table,
		extractor:  graph.NewExtractor(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Classify scores a document.
func (p *Pipeline) Classify(title, text string) classify.Result {
	return p.classifier.Classify(title, text)
}

// Segment classifies, segments and extracts edges. Calling it twice on the
// same input yields identical results.
func (p *Pipeline) Segment(documentID, title, text string) *Result {
	family := p.classifier.Classify(title, text).Type
	return p.SegmentAs(family, documentID, title, text)
}

// SegmentAs skips classification, for documents whose family is already
// known.
func (p *Pipeline) SegmentAs(family classify.Family, documentID, title, text string) *Result {
	if !family.Valid() {
		family = classify.Unknown
	}
	segs := p.table.Segment(family, text, segment.DocMeta{
		DocumentID: documentID,
		Title:      title,
		MaxChars:   p.maxChars,
	})
	if segs == nil {
		segs = []segment.Segment{}
	}
	g := p.extractor.Extract(family, documentID, segs)
	return &Result{
		DocumentID: documentID,
		Type:       family,
		TypeHuman:  family.Human(),
		Segments:   segs,
		Edges:      g.Edges,
		Unresolved: g.Unresolved,
	}
}
