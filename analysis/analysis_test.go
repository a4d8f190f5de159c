package analysis

import (
	"reflect"
	"strings"
	"testing"

	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/segment"
)

func TestSegmentStatuteScenario(t *testing.T) {
	p := New(nil, nil)
	res := p.Segment("doc1", "", "Article 1\nFoo.\nArticle 2\nBar. Voir l'article 1.")

	if res.Type != classify.Statute {
		t.Fatalf("type = %q, want %q", res.Type, classify.Statute)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	if res.Segments[0].Text != "Foo." || res.Segments[1].Text != "Bar. Voir l'article 1." {
		t.Errorf("texts = %q, %q", res.Segments[0].Text, res.Segments[1].Text)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(res.Edges))
	}
	e := res.Edges[0]
	if e.From != "seg:art.2" || e.To != "seg:art.1" || e.ToRef != "art.1" || e.Type != graph.RelRefersTo {
		t.Errorf("edge = %+v", e)
	}
}

func TestSegmentJudgmentScenario(t *testing.T) {
	res := New(nil, nil).SegmentAs(classify.Judgment, "doc2", "",
		"Faits\nLe demandeur...\nMotifs\nLa cour considère...\nDispositif\nLa demande est accueillie.")

	var roles []segment.Role
	for _, s := range res.Segments {
		roles = append(roles, s.Role)
	}
	want := []segment.Role{segment.RoleFacts, segment.RoleReasons, segment.RoleDisposition}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("roles = %v, want %v", roles, want)
	}
}

func TestSegmentReportScenario(t *testing.T) {
	res := New(nil, nil).SegmentAs(classify.PublicReport, "doc3", "",
		"Observation n° 1\nLe contrôle a révélé...\nRecommendation\n- Renforcer les contrôles.")

	var rec *segment.Segment
	for i := range res.Segments {
		if res.Segments[i].Role == segment.RoleRecommendation {
			rec = &res.Segments[i]
		}
	}
	if rec == nil {
		t.Fatal("no recommendation segment")
	}
	if rec.Meta.RecommendationID != "1-1" || rec.Meta.ResponseTo != "1" || rec.Meta.ObservationID != "1" {
		t.Errorf("recommendation meta = %+v", rec.Meta)
	}

	var hasObs, implements bool
	for _, e := range res.Edges {
		switch e.Type {
		case graph.RelHasObservation:
			hasObs = e.From == "doc:doc3" && e.To == "seg:obs.1"
		case graph.RelImplements:
			implements = e.From == rec.ID && e.To == "seg:obs.1"
		}
	}
	if !hasObs || !implements {
		t.Errorf("structural edges missing: %+v", res.Edges)
	}
}

func TestSegmentIdempotent(t *testing.T) {
	p := New(nil, nil)
	text := "Article 1\nVoir les articles 2 à 3.\nArticle 2\nBar.\nArticle 3\nBaz, art. 1457 du Code civil."
	a := p.Segment("d", "Loi", text)
	b := p.Segment("d", "Loi", text)
	if !reflect.DeepEqual(a, b) {
		t.Error("two runs on the same input differ")
	}
}

func TestSegmentUnknownFallsBack(t *testing.T) {
	res := New(nil, nil, WithMaxChars(10)).Segment("d", "", "Une simple note sans structure.")
	if res.Type != classify.Unknown {
		t.Errorf("type = %q", res.Type)
	}
	if len(res.Segments) != 1 || res.Segments[0].Role != segment.RoleWholeDocument {
		t.Fatalf("segments = %+v", res.Segments)
	}
	if !res.Segments[0].Meta.Truncated {
		t.Error("fallback should be truncated to MaxChars")
	}
	if res.Edges == nil || res.Unresolved == nil {
		t.Error("edge lists should be empty, not nil")
	}
}

func TestSegmentEmptyText(t *testing.T) {
	res := New(nil, nil).Segment("d", "", "   ")
	if len(res.Segments) != 0 {
		t.Errorf("segments = %+v", res.Segments)
	}
}

func TestResultCitations(t *testing.T) {
	res := New(nil, nil).SegmentAs(classify.Statute, "d", "",
		"Article 1\nSelon l'art. 1457 du Code civil, voir l'article 2. Voir aussi 2017 CSC 45.\nArticle 2\nFin.")
	cites := res.Citations("seg:art.1")
	if len(cites) != 2 {
		t.Fatalf("citations = %+v", cites)
	}
	for _, c := range cites {
		if c.Type == graph.RelRefersTo {
			t.Errorf("cross-reference returned as citation: %+v", c)
		}
	}
}

func TestPreviewClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultPreviewChars},
		{-5, DefaultPreviewChars},
		{10, MinPreviewChars},
		{5_000, 5_000},
		{1_000_000, MaxPreviewChars},
	}
	for _, tt := range tests {
		if got := ClampPreviewChars(tt.in); got != tt.want {
			t.Errorf("ClampPreviewChars(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPreviewTruncatesInput(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Article 1\nTexte répété pour remplir la prévisualisation.\n")
	}
	res := New(nil, nil).Preview("d", "", b.String(), 1_000)
	total := 0
	for _, s := range res.Segments {
		total += len([]rune(s.Text))
	}
	if total > 1_000 {
		t.Errorf("preview covers %d runes, want at most 1000", total)
	}
}
