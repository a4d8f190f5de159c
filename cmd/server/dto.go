package main

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/brunobiangulo/lexgraph"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/retrieval"
	"github.com/brunobiangulo/lexgraph/segment"
)

const (
	maxSegmentsLimit = 50
	maxTopN          = 100
	maxTextBytes     = 10 << 20
	maxMindMapDocs   = 10
)

// textRequest is the body of /api/classify and /api/segment.
type textRequest struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
}

func (r textRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}

// graphRetrieveRequest is the body of /api/retrieve.
type graphRetrieveRequest struct {
	Query              string   `json:"query"`
	DocumentIDs        []string `json:"document_ids"`
	MaxSegments        int      `json:"max_segments"`
	ExpandHops         int      `json:"expand_hops"`
	MaxCharsPerSegment int      `json:"max_chars_per_segment"`
}

func (r graphRetrieveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
		validation.Field(&r.MaxSegments, validation.Min(0), validation.Max(maxSegmentsLimit)),
		validation.Field(&r.ExpandHops, validation.Max(5)),
		validation.Field(&r.MaxCharsPerSegment, validation.Min(0)),
	)
}

func (r graphRetrieveRequest) toRetrieval() retrieval.GraphRequest {
	return retrieval.GraphRequest{
		Query:              r.Query,
		DocumentIDs:        r.DocumentIDs,
		MaxSegments:        r.MaxSegments,
		ExpandHops:         r.ExpandHops,
		MaxCharsPerSegment: r.MaxCharsPerSegment,
	}
}

// flatRetrieveRequest is the body of /api/retrieve/flat.
type flatRetrieveRequest struct {
	Query   string      `json:"query"`
	Filters flatFilters `json:"filters"`
	TopN    int         `json:"top_n"`
}

type flatFilters struct {
	DocumentIDs []string `json:"document_ids"`
	Types       []string `json:"types"`
	Roles       []string `json:"roles"`
}

func (f flatFilters) Validate() error {
	families := make([]any, 0, len(classify.Families)+1)
	for _, fam := range classify.Families {
		families = append(families, string(fam))
	}
	families = append(families, string(classify.Unknown))
	roles := make([]any, 0, len(segment.Roles))
	for _, role := range segment.Roles {
		roles = append(roles, string(role))
	}
	return validation.ValidateStruct(&f,
		validation.Field(&f.Types, validation.Each(validation.In(families...))),
		validation.Field(&f.Roles, validation.Each(validation.In(roles...))),
	)
}

func (r flatRetrieveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
		validation.Field(&r.Filters),
		validation.Field(&r.TopN, validation.Min(0), validation.Max(maxTopN)),
	)
}

func (r flatRetrieveRequest) toRetrieval() retrieval.FlatRequest {
	req := retrieval.FlatRequest{
		Query:   r.Query,
		TopN:    r.TopN,
		Filters: retrieval.Filters{DocumentIDs: r.Filters.DocumentIDs},
	}
	for _, t := range r.Filters.Types {
		req.Filters.Types = append(req.Filters.Types, classify.Family(t))
	}
	for _, role := range r.Filters.Roles {
		req.Filters.Roles = append(req.Filters.Roles, segment.Role(role))
	}
	return req
}

// chatRequest is the body of /api/chat.
type chatRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids"`
	Mode        string   `json:"mode"`
	MaxSegments int      `json:"max_segments"`
	ExpandHops  int      `json:"expand_hops"`
	TopN        int      `json:"top_n"`
}

func (r chatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.Required),
		validation.Field(&r.Mode, validation.In(lexgraph.ModeGraph, lexgraph.ModeFlat)),
		validation.Field(&r.MaxSegments, validation.Min(0), validation.Max(maxSegmentsLimit)),
		validation.Field(&r.ExpandHops, validation.Max(5)),
		validation.Field(&r.TopN, validation.Min(0), validation.Max(maxTopN)),
	)
}

func (r chatRequest) options() []lexgraph.AskOption {
	var opts []lexgraph.AskOption
	if len(r.DocumentIDs) > 0 {
		opts = append(opts, lexgraph.WithDocuments(r.DocumentIDs...))
	}
	if r.Mode != "" {
		opts = append(opts, lexgraph.WithRetrievalMode(r.Mode))
	}
	if r.MaxSegments > 0 {
		opts = append(opts, lexgraph.WithMaxSegments(r.MaxSegments))
	}
	if r.ExpandHops != 0 {
		opts = append(opts, lexgraph.WithExpandHops(r.ExpandHops))
	}
	if r.TopN > 0 {
		opts = append(opts, lexgraph.WithTopN(r.TopN))
	}
	return opts
}

// notesRequest is the body of PUT /api/documents/{id}/notes.
type notesRequest struct {
	Content *string `json:"content"`
}

func (r notesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.NotNil, validation.Length(0, maxTextBytes)),
	)
}

// mindMapRequest is the body of POST /api/mindmap.
type mindMapRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (r mindMapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentIDs, validation.Required, validation.Length(1, maxMindMapDocs),
			validation.Each(validation.Required)),
	)
}

// registryEntryRequest is the body of PUT /api/registry/entries.
type registryEntryRequest struct {
	Alias  string `json:"alias"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

func (r registryEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Alias, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Name, validation.Required),
	)
}

// documentResponse is a document without its full text.
type documentResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Path         string `json:"path,omitempty"`
	Format       string `json:"format"`
	DetectedType string `json:"detected_type"`
	TypeHuman    string `json:"type_human"`
	Status       string `json:"status"`
	Segments     int    `json:"segments,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// refreshResult is one entry of /api/documents/refresh.
type refreshResult struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Changed    bool   `json:"changed"`
	Error      string `json:"error,omitempty"`
}
