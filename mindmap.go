package lexgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/llm"
)

// maxMindMapChars bounds the document text sent to the chat model.
const maxMindMapChars = 60_000

// MindMapNode is one node of a document outline. The root carries the
// outline title.
type MindMapNode struct {
	Title    string        `json:"title"`
	Children []MindMapNode `json:"children"`
}

// UnmarshalJSON accepts a bare string as a leaf node; models often emit
// `"children": ["A", "B"]`.
func (n *MindMapNode) UnmarshalJSON(data []byte) error {
	var leaf string
	if err := json.Unmarshal(data, &leaf); err == nil {
		*n = MindMapNode{Title: leaf, Children: []MindMapNode{}}
		return nil
	}
	type plain MindMapNode
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Children == nil {
		p.Children = []MindMapNode{}
	}
	*n = MindMapNode(p)
	return nil
}

// mindMapBranches is the outline each family is laid out along.
var mindMapBranches = map[classify.Family]string{
	classify.Statute:      "Objet, Champ d'application, Définitions, Obligations, Sanctions, Dispositions finales",
	classify.Judgment:     "Parties, Faits, Questions en litige, Articles de loi, Motifs, Dispositif",
	classify.Doctrine:     "Thèse, Plan, Arguments, Sources citées, Conclusion",
	classify.PublicReport: "Mandat, Observations, Recommandations, Réponses des entités, Suivi",
}

const mindMapPrompt = `Tu es un assistant juridique. À partir des documents fournis, génère une mind map hiérarchisée au format JSON avec les clés "title" (chaîne) et "children" (tableau récursif de nœuds de même forme).

Structure logique : %s.

Retourne uniquement un objet JSON, par exemple :
{"title": "Résumé", "children": [{"title": "Faits", "children": [{"title": "A", "children": []}]}]}`

// MindMap asks the chat model for a hierarchical outline of the given
// documents.
func (e *engine) MindMap(ctx context.Context, documentIDs []string) (*MindMapNode, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one document is required", ErrInvalidInput)
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	var (
		texts    []string
		families = make(map[classify.Family]bool)
	)
	for _, id := range documentIDs {
		doc, err := e.store.GetDocument(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		families[classify.Family(doc.DetectedType)] = true
		texts = append(texts, doc.Title+"\n\n"+doc.Text)
	}

	branches := "Parties, Faits, Articles de loi, Motifs, Conclusion"
	if len(families) == 1 {
		for f := range families {
			if b, ok := mindMapBranches[f]; ok {
				branches = b
			}
		}
	}

	resp, err := e.chatLLM.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Chat.Model,
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(mindMapPrompt, branches)},
			{Role: "user", Content: truncateRunes(strings.Join(texts, "\n\n"), maxMindMapChars)},
		},
		Temperature:    0.2,
		ResponseFormat: "json_object",
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, mapError(err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	root, err := parseMindMap(resp.Content)
	if err != nil {
		slog.Warn("mindmap: invalid model output", "error", err, "model", resp.Model)
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	slog.Info("mindmap: generated", "documents", len(documentIDs), "branches", len(root.Children),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return root, nil
}

// parseMindMap decodes the model output, tolerating a Markdown code fence.
func parseMindMap(raw string) (*MindMapNode, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	var root MindMapNode
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("mind map is not valid JSON: %w", err)
	}
	if strings.TrimSpace(root.Title) == "" {
		return nil, errors.New("mind map has no title")
	}
	return &root, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
