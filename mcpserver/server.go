// Package mcpserver exposes the lexgraph engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/brunobiangulo/lexgraph"
	"github.com/brunobiangulo/lexgraph/analysis"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/retrieval"
	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// Engine is the part of lexgraph.Engine the tools call.
type Engine interface {
	ClassifyDocument(title, text string) classify.Result
	SegmentDocument(documentID, title, text string) *analysis.Result
	RetrieveGraph(ctx context.Context, req retrieval.GraphRequest) (*retrieval.GraphResult, error)
	RetrieveFlat(ctx context.Context, req retrieval.FlatRequest) (*retrieval.FlatResult, error)
	Ask(ctx context.Context, question string, opts ...lexgraph.AskOption) (*lexgraph.Answer, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
}

const familiesURI = "lexgraph://families"

// Server wraps the MCP server with the lexgraph tools.
type Server struct {
	mcp    *server.MCPServer
	engine Engine
}

// New creates an MCP server with every tool registered.
func New(engine Engine, version string) *Server {
	s := &Server{engine: engine}

	s.mcp = server.NewMCPServer(
		"lexgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Detect the family of a legal document: statute_regulation, judgment, doctrine, public_report or unknown."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("title", mcp.Description("Optional document title")),
	), s.classifyDocument)

	s.mcp.AddTool(mcp.NewTool("segment_document",
		mcp.WithDescription("Split a legal document into its structural segments (articles, "+
			"facts/reasons/disposition, observations and recommendations) and extract its cross-references."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("title", mcp.Description("Optional document title")),
		mcp.WithString("document_id", mcp.Description("Identifier stamped on segments and edges")),
		mcp.WithNumber("max_preview_chars", mcp.Description("Analyze only the first N characters (1000 to 200000)")),
	), s.segmentDocument)

	s.mcp.AddTool(mcp.NewTool("retrieve",
		mcp.WithDescription("Retrieve a numbered context of segments relevant to a query from the ingested documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithArray("document_ids", mcp.Description("Restrict to these documents"), mcp.WithStringItems()),
		mcp.WithString("mode", mcp.Description("graph (default) or flat"), mcp.Enum(lexgraph.ModeGraph, lexgraph.ModeFlat)),
		mcp.WithNumber("max_segments", mcp.Description("Graph mode: maximum segments in the context")),
		mcp.WithNumber("expand_hops", mcp.Description("Graph mode: cross-reference hops, negative disables")),
		mcp.WithNumber("top_n", mcp.Description("Flat mode: number of segments")),
	), s.retrieve)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question from the ingested documents, citing context blocks as 【n】."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in natural language")),
		mcp.WithArray("document_ids", mcp.Description("Restrict to these documents"), mcp.WithStringItems()),
		mcp.WithString("mode", mcp.Description("graph (default) or flat"), mcp.Enum(lexgraph.ModeGraph, lexgraph.ModeFlat)),
	), s.ask)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List ingested documents with their detected family and status."),
	), s.listDocuments)

	s.mcp.AddResource(
		mcp.NewResource(familiesURI, "Document families",
			mcp.WithResourceDescription("The document families and the segment roles each one produces."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFamilies,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError hides provider details; the engine sentinels are enough for a
// client to decide whether to retry.
func toolError(err error) *mcp.CallToolResult {
	for _, known := range []error{
		lexgraph.ErrTimeout, lexgraph.ErrEmbeddingFailed, lexgraph.ErrCompletionFailed,
		lexgraph.ErrDocumentNotFound, lexgraph.ErrEmptyQuestion,
	} {
		if errors.Is(err, known) {
			return mcp.NewToolResultError(known.Error())
		}
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) classifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.engine.ClassifyDocument(req.GetString("title", ""), text))
}

func (s *Server) segmentDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n := req.GetInt("max_preview_chars", 0); n > 0 {
		n = analysis.ClampPreviewChars(n)
		if r := []rune(text); len(r) > n {
			text = string(r[:n])
		}
	}
	res := s.engine.SegmentDocument(req.GetString("document_id", "doc"), req.GetString("title", ""), text)
	return jsonResult(res)
}

func (s *Server) retrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := req.GetStringSlice("document_ids", nil)

	switch mode := req.GetString("mode", lexgraph.ModeGraph); mode {
	case lexgraph.ModeFlat:
		res, err := s.engine.RetrieveFlat(ctx, retrieval.FlatRequest{
			Query:   query,
			Filters: retrieval.Filters{DocumentIDs: ids},
			TopN:    req.GetInt("top_n", 0),
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	case lexgraph.ModeGraph:
		res, err := s.engine.RetrieveGraph(ctx, retrieval.GraphRequest{
			Query:       query,
			DocumentIDs: ids,
			MaxSegments: req.GetInt("max_segments", 0),
			ExpandHops:  req.GetInt("expand_hops", 0),
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q", mode)), nil
	}
}

func (s *Server) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var opts []lexgraph.AskOption
	if ids := req.GetStringSlice("document_ids", nil); len(ids) > 0 {
		opts = append(opts, lexgraph.WithDocuments(ids...))
	}
	if mode := req.GetString("mode", ""); mode != "" {
		opts = append(opts, lexgraph.WithRetrievalMode(mode))
	}
	ans, err := s.engine.Ask(ctx, question, opts...)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ans)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.engine.ListDocuments(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents ingested"), nil
	}
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", d.ID, d.DetectedType, d.Status, d.Title)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

// familiesDoc is served as the families resource.
var familiesDoc = func() string {
	roles := map[classify.Family][]segment.Role{
		classify.Statute:      {segment.RoleHeader, segment.RoleArticle},
		classify.Judgment:     {segment.RoleFacts, segment.RoleIssues, segment.RoleReasons, segment.RoleDisposition, segment.RoleSignatures},
		classify.Doctrine:     {segment.RoleAbstract, segment.RoleBody, segment.RoleConclusion, segment.RoleNotes, segment.RoleBibliography},
		classify.PublicReport: {segment.RoleExecutiveSummary, segment.RoleObservation, segment.RoleRecommendation, segment.RoleResponse, segment.RoleAnnexCaption},
		classify.Unknown:      {segment.RoleWholeDocument},
	}
	var b strings.Builder
	b.WriteString("# Document families\n\n")
	for _, f := range append(append([]classify.Family{}, classify.Families...), classify.Unknown) {
		names := make([]string, len(roles[f]))
		for i, r := range roles[f] {
			names[i] = string(r)
		}
		fmt.Fprintf(&b, "- `%s` (%s): %s\n", f, f.Human(), strings.Join(names, ", "))
	}
	return b.String()
}()

func (s *Server) readFamilies(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      familiesURI,
			MIMEType: "text/markdown",
			Text:     familiesDoc,
		},
	}, nil
}
