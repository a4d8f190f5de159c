package lexgraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/brunobiangulo/lexgraph/answer"
	"github.com/brunobiangulo/lexgraph/retrieval"
	"github.com/brunobiangulo/lexgraph/store"
)

// Ask runs graph retrieval, falls back to flat retrieval when the graph
// finds no segments (or when the flat mode is requested), composes the
// answer and logs the query. An empty context yields a no_context answer,
// not an error.
func (e *engine) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	options := &askOptions{mode: e.cfg.Retrieval.Mode}
	for _, o := range opts {
		o(options)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	contextText, sources, method, err := e.retrieveContext(ctx, question, options)
	if err != nil {
		return nil, mapError(err)
	}

	composed, err := e.composer.Compose(ctx, question, contextText)
	if err != nil {
		return nil, mapError(err)
	}

	ans := &Answer{
		Text:             composed.Text,
		Status:           composed.Status,
		Confidence:       composed.Confidence,
		Markers:          composed.Markers,
		InvalidMarkers:   composed.InvalidMarkers,
		Repaired:         composed.Repaired,
		Issues:           composed.Issues,
		Sources:          citedSources(sources, composed),
		RetrievalMethod:  method,
		ModelUsed:        composed.ModelUsed,
		PromptTokens:     composed.PromptTokens,
		CompletionTokens: composed.CompletionTokens,
		TotalTokens:      composed.TotalTokens,
		ElapsedMs:        time.Since(start).Milliseconds(),
	}

	e.logQuery(ctx, question, ans, options.documentIDs)
	slog.Info("ask: answered",
		"status", ans.Status, "method", method, "sources", len(ans.Sources),
		"tokens", ans.TotalTokens, "elapsed", time.Since(start).Round(time.Millisecond))
	return ans, nil
}

// retrieveContext returns the rendered context and one Source per block,
// Sources[i] being block 【i+1】.
func (e *engine) retrieveContext(ctx context.Context, question string, o *askOptions) (string, []Source, string, error) {
	if o.mode != ModeFlat {
		gr, err := e.retriever.RetrieveGraph(ctx, e.graphDefaults(retrieval.GraphRequest{
			Query:       question,
			DocumentIDs: o.documentIDs,
			MaxSegments: o.maxSegments,
			ExpandHops:  o.expandHops,
		}))
		if err != nil {
			return "", nil, "", fmt.Errorf("graph retrieval: %w", err)
		}
		if gr.Reason != retrieval.ReasonNoSegments {
			sources := make([]Source, len(gr.Selected))
			for i, s := range gr.Selected {
				sources[i] = Source{
					Marker: i + 1, SegmentID: s.ID, DocumentID: s.DocumentID, Title: s.Title,
					Role: s.Role, SectionPath: s.SectionPath, Why: s.Why, Score: s.Sim, text: s.Text,
				}
			}
			return gr.ContextText, sources, ModeGraph, nil
		}
		slog.Debug("ask: graph retrieval found no segments, falling back to flat")
	}

	topN := o.topN
	if topN <= 0 {
		topN = e.cfg.Retrieval.TopN
	}
	fr, err := e.retriever.RetrieveFlat(ctx, retrieval.FlatRequest{
		Query:   question,
		Filters: retrieval.Filters{DocumentIDs: o.documentIDs},
		TopN:    topN,
	})
	if err != nil {
		return "", nil, "", fmt.Errorf("flat retrieval: %w", err)
	}
	sources := make([]Source, len(fr.Segments))
	for i, h := range fr.Segments {
		sources[i] = Source{
			Marker: i + 1, SegmentID: h.SegmentID, DocumentID: h.DocumentID, Title: h.Title,
			Role: h.Role, SectionPath: h.SectionPath, Score: h.Score, text: h.Text,
		}
	}
	return fr.ContextText, sources, ModeFlat, nil
}

// citedSources keeps the blocks the answer cites, with a snippet of the
// sentences closest to the answer.
func citedSources(all []Source, a *answer.Answer) []Source {
	out := []Source{}
	if a.Status != answer.StatusOK {
		return out
	}
	words := significantWords(a.Text)
	for _, s := range all {
		if !slices.Contains(a.Markers, s.Marker) {
			continue
		}
		s.Snippet = extractSnippet(s.text, words)
		out = append(out, s)
	}
	return out
}

// logQuery records the answer. The entry is scoped to the requested
// documents, or to the documents of the cited sources when none were
// requested.
func (e *engine) logQuery(ctx context.Context, question string, a *Answer, scope []string) {
	ids := make([]string, len(a.Sources))
	for i, s := range a.Sources {
		ids[i] = s.SegmentID
	}
	docs := slices.Clone(scope)
	if len(docs) == 0 {
		for _, s := range a.Sources {
			if !slices.Contains(docs, s.DocumentID) {
				docs = append(docs, s.DocumentID)
			}
		}
	}
	err := e.store.LogQuery(context.WithoutCancel(ctx), store.QueryLog{
		Query:            question,
		Answer:           a.Text,
		Status:           a.Status,
		Sources:          ids,
		DocumentIDs:      docs,
		RetrievalMethod:  a.RetrievalMethod,
		ModelUsed:        a.ModelUsed,
		PromptTokens:     a.PromptTokens,
		CompletionTokens: a.CompletionTokens,
		TotalTokens:      a.TotalTokens,
		DurationMs:       a.ElapsedMs,
	})
	if err != nil {
		slog.Warn("ask: query log failed", "error", err)
	}
}
