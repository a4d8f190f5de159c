package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/llm"
	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// fakeStore serves documents, canned search hits and edges from memory.
type fakeStore struct {
	docs     []store.Document
	vec, fts []store.SearchHit
	ftsErr   error
	edges    map[string][]graph.Edge

	mu       sync.Mutex
	ftsQuery string
}

func (f *fakeStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
}

func (f *fakeStore) ListDocuments(ctx context.Context) ([]store.Document, error) {
	out := make([]store.Document, len(f.docs))
	for i, d := range f.docs {
		d.Text = ""
		out[i] = d
	}
	return out, nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, embedding []float32, k int, filter store.SearchFilter) ([]store.SearchHit, error) {
	return firstMatching(f.vec, k, filter), nil
}

func (f *fakeStore) FTSSearch(ctx context.Context, query string, limit int, filter store.SearchFilter) ([]store.SearchHit, error) {
	f.mu.Lock()
	f.ftsQuery = query
	f.mu.Unlock()
	if f.ftsErr != nil {
		return nil, f.ftsErr
	}
	return firstMatching(f.fts, limit, filter), nil
}

// firstMatching filters canned hits in rank order, then keeps n of them.
func firstMatching(hits []store.SearchHit, n int, filter store.SearchFilter) []store.SearchHit {
	var out []store.SearchHit
	for _, h := range hits {
		if filter.Match(h) && len(out) < n {
			out = append(out, h)
		}
	}
	return out
}

func (f *fakeStore) EdgesFrom(ctx context.Context, documentID string, segmentIDs []string) ([]graph.Edge, error) {
	var out []graph.Edge
	for _, e := range f.edges[documentID] {
		if slices.Contains(segmentIDs, e.From) {
			out = append(out, e)
		}
	}
	return out, nil
}

var vocabulary = []string{"alpha", "beta", "gamma", "delta"}

// keywordEmbedder maps a text to one component per vocabulary word it
// contains plus a constant component.
type keywordEmbedder struct {
	fail bool

	mu    sync.Mutex
	texts []string
}

func (k *keywordEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{}, nil
}

func (k *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if k.fail {
		return nil, errors.New("provider down")
	}
	k.mu.Lock()
	k.texts = append(k.texts, texts...)
	k.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(vocabulary)+1)
		for j, w := range vocabulary {
			if strings.Contains(strings.ToLower(t), w) {
				v[j] = 1
			}
		}
		v[len(vocabulary)] = 0.1
		out[i] = v
	}
	return out, nil
}

const sixArticles = "Article 1\nalpha un. Voir l'article 6.\n" +
	"Article 2\nalpha deux.\n" +
	"Article 3\nalpha trois.\n" +
	"Article 4\nbeta quatre.\n" +
	"Article 5\ngamma cinq.\n" +
	"Article 6\ndelta six."

func statuteStore() *fakeStore {
	return &fakeStore{docs: []store.Document{{
		ID: "code", Title: "Code test", Text: sixArticles,
		DetectedType: string(classify.Statute), Status: store.StatusReady,
	}}}
}

func selectedIDs(sel []Selected) []string {
	ids := make([]string, len(sel))
	for i, s := range sel {
		ids[i] = s.ID
	}
	return ids
}

// ---------------------------------------------------------------------------
// Graph retrieval
// ---------------------------------------------------------------------------

func TestRetrieveGraphExpandsCrossReferences(t *testing.T) {
	e := New(statuteStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha"})
	require.NoError(t, err)

	assert.Equal(t, []string{"seg:art.1", "seg:art.2", "seg:art.3", "seg:art.6"}, selectedIDs(res.Selected))
	whys := make([]string, len(res.Selected))
	for i, s := range res.Selected {
		whys[i] = s.Why
	}
	assert.Equal(t, []string{"seed", "seed", "seed", "edge:refersTo"}, whys)
	assert.Len(t, res.Seeds, 3)
	assert.Equal(t, 1, res.Selected[3].Depth)

	if !strings.HasPrefix(res.ContextText, "【1】Code test — ") {
		t.Errorf("context starts with %q", res.ContextText[:min(40, len(res.ContextText))])
	}
	if !strings.Contains(res.ContextText, "【4】") || strings.Contains(res.ContextText, "【5】") {
		t.Errorf("expected exactly 4 blocks:\n%s", res.ContextText)
	}
	if !strings.Contains(res.ContextText, "(seg:art.6)\ndelta six.") {
		t.Errorf("expanded block missing:\n%s", res.ContextText)
	}
}

func TestRetrieveGraphSegmentsBeyondPreviewLength(t *testing.T) {
	filler := strings.Repeat("beta remplissage ", 16_000)
	require.Greater(t, utf8.RuneCountInString(filler), 200_000)
	fs := &fakeStore{docs: []store.Document{{
		ID: "long", Title: "Code long", Text: "Article 1\n" + filler + "\nArticle 2\nalpha final.",
		DetectedType: string(classify.Statute), Status: store.StatusReady,
	}}}
	e := New(fs, &keywordEmbedder{}, nil, Config{})

	res, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Seeds)
	assert.Equal(t, "seg:art.2", res.Seeds[0].ID)
	assert.Greater(t, res.Seeds[0].Sim, 0.99)
	assert.Contains(t, selectedIDs(res.Selected), "seg:art.2")
}

func TestRetrieveGraphSeedFloorRespectsMaxSegments(t *testing.T) {
	e := New(statuteStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha", MaxSegments: 2})
	require.NoError(t, err)

	if len(res.Selected) != 2 {
		t.Fatalf("selected %d segments, want 2", len(res.Selected))
	}
	for _, s := range res.Selected {
		if s.Why != "seed" {
			t.Errorf("%s kept as %q, want seed", s.ID, s.Why)
		}
	}
	if len(res.Seeds) != 3 {
		t.Errorf("seeds = %d, want 3", len(res.Seeds))
	}
}

func TestRetrieveGraphNoExpansion(t *testing.T) {
	e := New(statuteStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha", ExpandHops: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg:art.1", "seg:art.2", "seg:art.3"}, selectedIDs(res.Selected))
}

func TestRetrieveGraphNoSegments(t *testing.T) {
	e := New(&fakeStore{}, &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSegments, res.Reason)
	assert.Empty(t, res.Selected)
	assert.Empty(t, res.ContextText)
}

func TestRetrieveGraphSkipsUnknownDocuments(t *testing.T) {
	e := New(statuteStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveGraph(context.Background(), GraphRequest{
		Query:       "alpha",
		DocumentIDs: []string{"missing", "code"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Reason)
	assert.NotEmpty(t, res.Selected)

	res, err = e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha", DocumentIDs: []string{"missing"}})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSegments, res.Reason)
}

func TestRetrieveGraphTruncatesEmbeddedText(t *testing.T) {
	emb := &keywordEmbedder{}
	e := New(statuteStore(), emb, nil, Config{})
	_, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha", MaxCharsPerSegment: 5})
	require.NoError(t, err)

	// First text is the query.
	for _, txt := range emb.texts[1:] {
		if n := utf8.RuneCountInString(txt); n > 5 {
			t.Errorf("embedded %q (%d runes)", txt, n)
		}
	}
}

func TestRetrieveGraphEmbeddingFailure(t *testing.T) {
	e := New(statuteStore(), &keywordEmbedder{fail: true}, nil, Config{})
	_, err := e.RetrieveGraph(context.Background(), GraphRequest{Query: "alpha"})
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}
}

func TestSeedCount(t *testing.T) {
	tests := []struct{ max, cands, want int }{
		{8, 100, 5},
		{4, 100, 4},
		{2, 100, 3},
		{1, 2, 2},
		{8, 0, 0},
	}
	for _, tt := range tests {
		if got := SeedCount(tt.max, tt.cands); got != tt.want {
			t.Errorf("SeedCount(%d, %d) = %d, want %d", tt.max, tt.cands, got, tt.want)
		}
	}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}), 1e-6)
}

// ---------------------------------------------------------------------------
// Flat retrieval
// ---------------------------------------------------------------------------

var (
	hitReasons = store.SearchHit{RowID: 1, DocumentID: "j1", SegmentID: "seg:reasons", Title: "Arrêt",
		Family: string(classify.Judgment), Role: string(segment.RoleReasons), Text: "La cour considère."}
	hitRec = store.SearchHit{RowID: 2, DocumentID: "r1", SegmentID: "seg:rec.1", Title: "Rapport",
		Family: string(classify.PublicReport), Role: string(segment.RoleRecommendation), Text: "Nous recommandons."}
	hitArt = store.SearchHit{RowID: 3, DocumentID: "s1", SegmentID: "seg:art.1", Title: "Code",
		Family: string(classify.Statute), Role: string(segment.RoleArticle), SectionPath: "Article 1",
		Text: "Selon l'art. 1457 du Code civil."}
	hitDisp = store.SearchHit{RowID: 4, DocumentID: "j1", SegmentID: "seg:disposition", Title: "Arrêt",
		Family: string(classify.Judgment), Role: string(segment.RoleDisposition), Text: "Accueille la demande."}
)

func flatStore() *fakeStore {
	return &fakeStore{
		vec: []store.SearchHit{hitReasons, hitRec, hitArt},
		fts: []store.SearchHit{hitArt, hitDisp},
		edges: map[string][]graph.Edge{
			"s1": {
				{From: "seg:art.1", ToRef: "art.1457 — Code civil", Type: graph.RelCitesStatute,
					Surface: "art. 1457 du Code civil", DstType: graph.DstStatute},
				{From: "seg:art.1", To: "seg:art.2", ToRef: "art.2", Type: graph.RelRefersTo, DstType: graph.DstSegment},
			},
		},
	}
}

func hitIDs(hits []FlatHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.SegmentID
	}
	return ids
}

func TestRetrieveFlatFusesAndCites(t *testing.T) {
	fs := flatStore()
	e := New(fs, &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité civile", TopN: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"seg:art.1", "seg:reasons", "seg:rec.1"}, hitIDs(res.Segments))
	assert.Equal(t, []string{"vector", "fts"}, res.Segments[0].Methods)
	assert.Equal(t, `"responsabilité civile" OR "responsabilité" OR "civile"`, fs.ftsQuery)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, graph.RelCitesStatute, res.Citations[0].Type)
	assert.Contains(t, res.ContextText,
		"【1】Code — Article 1 (seg:art.1)\nSelon l'art. 1457 du Code civil.\n\nCitations détectées:\n- Disposition: art. 1457 du Code civil (art.1457 — Code civil)")
	assert.Contains(t, res.ContextText, "【2】Arrêt — REASONS (seg:reasons)")
	assert.Equal(t, 2, res.Trace.FTSResults)
	assert.Equal(t, 4, res.Trace.FusedResults)
}

func TestRetrieveFlatDefaultTopN(t *testing.T) {
	e := New(flatStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité"})
	require.NoError(t, err)
	assert.Len(t, res.Segments, 4)
}

func TestRetrieveFlatFilters(t *testing.T) {
	e := New(flatStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{
		Query:   "recommandations",
		Filters: Filters{Types: []classify.Family{classify.Judgment}},
	})
	require.NoError(t, err)

	// Explicit filters disable intent detection.
	assert.True(t, res.Trace.Intent.Empty())
	assert.Equal(t, []string{"seg:reasons", "seg:disposition"}, hitIDs(res.Segments))

	res, err = e.RetrieveFlat(context.Background(), FlatRequest{
		Query:   "x",
		Filters: Filters{Roles: []segment.Role{segment.RoleDisposition}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg:disposition"}, hitIDs(res.Segments))
}

func TestRetrieveFlatIntent(t *testing.T) {
	e := New(flatStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "Quelles recommandations ont été formulées ?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg:rec.1"}, hitIDs(res.Segments))
	assert.False(t, res.Trace.IntentRelaxed)
}

func TestRetrieveFlatIntentRelaxed(t *testing.T) {
	e := New(flatStore(), &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{
		Query:   "recommandations",
		Filters: Filters{DocumentIDs: []string{"s1"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Trace.IntentRelaxed)
	assert.Equal(t, []string{"seg:art.1"}, hitIDs(res.Segments))
}

func TestRetrieveFlatEmbeddingFailureFailsRequest(t *testing.T) {
	e := New(flatStore(), &keywordEmbedder{fail: true}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité"})
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}
	assert.Nil(t, res)
}

func TestRetrieveFlatFTSFailureKeepsVectorHits(t *testing.T) {
	fs := flatStore()
	fs.ftsErr = errors.New("fts broken")
	e := New(fs, &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg:reasons", "seg:rec.1", "seg:art.1"}, hitIDs(res.Segments))
}

func TestRetrieveFlatFiltersBeforeRanking(t *testing.T) {
	fs := &fakeStore{}
	for i := 0; i < 45; i++ {
		fs.vec = append(fs.vec, store.SearchHit{RowID: int64(i + 1), DocumentID: "big",
			SegmentID: fmt.Sprintf("seg:art.%d", i+1), Family: string(classify.Statute), Role: string(segment.RoleArticle)})
	}
	for i := 0; i < 15; i++ {
		fs.vec = append(fs.vec, store.SearchHit{RowID: int64(100 + i), DocumentID: "small",
			SegmentID: fmt.Sprintf("seg:art.%d", i+1), Family: string(classify.Statute), Role: string(segment.RoleArticle)})
	}
	e := New(fs, &keywordEmbedder{}, nil, Config{})

	res, err := e.RetrieveFlat(context.Background(), FlatRequest{
		Query:   "x",
		Filters: Filters{DocumentIDs: []string{"small"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Reason)
	require.Len(t, res.Segments, DefaultTopN)
	for _, h := range res.Segments {
		assert.Equal(t, "small", h.DocumentID)
	}
}

func TestRetrieveFlatBothFail(t *testing.T) {
	fs := flatStore()
	fs.ftsErr = errors.New("fts broken")
	e := New(fs, &keywordEmbedder{fail: true}, nil, Config{})
	_, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité"})
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}
}

func TestRetrieveFlatNoSegments(t *testing.T) {
	e := New(&fakeStore{}, &keywordEmbedder{}, nil, Config{})
	res, err := e.RetrieveFlat(context.Background(), FlatRequest{Query: "responsabilité"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSegments, res.Reason)
	assert.NotNil(t, res.Segments)
	assert.Empty(t, res.ContextText)
}

// ---------------------------------------------------------------------------
// Fusion, query sanitizing, intent, rendering
// ---------------------------------------------------------------------------

func TestFuseRRF(t *testing.T) {
	a := store.SearchHit{RowID: 1, SegmentID: "a"}
	b := store.SearchHit{RowID: 2, SegmentID: "b"}
	c := store.SearchHit{RowID: 3, SegmentID: "c"}

	results, info := fuseRRF([]store.SearchHit{a, b}, []store.SearchHit{b, c}, 1.0, 0.5, 10)
	if len(results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(results))
	}

	// b: 1/62 + 0.5/61, a: 1/61, c: 0.5/62
	want := []string{"b", "a", "c"}
	for i, r := range results {
		if r.SegmentID != want[i] {
			t.Errorf("results[%d] = %s, want %s", i, r.SegmentID, want[i])
		}
	}
	assert.InDelta(t, 1.0/62+0.5/61, results[0].Score, 1e-12)
	assert.Equal(t, []string{"vector", "fts"}, info[2].Methods)
	assert.Equal(t, 2, info[2].VecRank)
	assert.Equal(t, 1, info[2].FTSRank)
	assert.Equal(t, 0, info[1].FTSRank)
}

func TestFuseRRFTiesKeepInsertionOrder(t *testing.T) {
	a := store.SearchHit{RowID: 1, SegmentID: "a"}
	b := store.SearchHit{RowID: 2, SegmentID: "b"}
	results, _ := fuseRRF([]store.SearchHit{a}, []store.SearchHit{b}, 1, 1, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].SegmentID)
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct{ in, want string }{
		{"responsabilité civile", `"responsabilité civile" OR "responsabilité" OR "civile"`},
		{"Que dit l'article 12 ?", `"que dit l article 12" OR "dit" OR "article" OR "12"`},
		{"le la", `"le la"`},
		{`"NEAR(a b)" OR *`, `"near a b or" OR "near"`},
		{"?! --", ""},
	}
	for _, tt := range tests {
		if got := sanitizeFTSQuery(tt.in); got != tt.want {
			t.Errorf("sanitizeFTSQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "éco", truncateRunes("économie", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		query string
		names []string
	}{
		{"Quelles recommandations ont été formulées ?", []string{"recommendation"}},
		{"Quels constats et quelle réponse de l'entité ?", []string{"observation", "response"}},
		{"Que prévoit l'article 5 ?", []string{"article"}},
		{"Quel est le dispositif de l'arrêt ?", []string{"disposition"}},
		{"Que disent les auteurs ?", []string{"doctrine"}},
		{"Bonjour", nil},
	}
	for _, tt := range tests {
		got := detectIntent(tt.query)
		assert.Equal(t, tt.names, got.Names, tt.query)
	}
}

func TestIntentMatch(t *testing.T) {
	in := detectIntent("recommandations et doctrine")
	assert.True(t, in.Match(classify.PublicReport, segment.RoleRecommendation))
	assert.False(t, in.Match(classify.PublicReport, segment.RoleObservation))
	assert.True(t, in.Match(classify.Doctrine, segment.RoleBody))
	assert.False(t, in.Match(classify.Judgment, segment.RoleRecommendation))
}

func TestRenderContext(t *testing.T) {
	got := renderContext([]contextBlock{
		{ID: "s1", Title: "Code", SectionPath: "Livre 1 > Article 1", Text: "  Foo.  "},
		{ID: "s2", Role: "reasons", Text: "Bar"},
		{ID: "s3", Text: "Baz"},
	})
	want := "【1】Code — Livre 1 > Article 1 (s1)\nFoo." + blockSeparator +
		"【2】REASONS (s2)\nBar" + blockSeparator +
		"【3】SEGMENT (s3)\nBaz"
	if got != want {
		t.Errorf("renderContext =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderCitationsSkipsCrossReferences(t *testing.T) {
	got := renderCitations([]graph.Edge{
		{Type: graph.RelCitesCase, Surface: "2017  CSC\n45", ToRef: "2017 CSC 45"},
		{Type: graph.RelRefersTo, ToRef: "art.2"},
	})
	assert.Equal(t, "\n\nCitations détectées:\n- Cause: 2017 CSC 45 (2017 CSC 45)", got)
	assert.Empty(t, renderCitations(nil))
}
