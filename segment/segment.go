// Package segment turns normalized legal text into ordered, typed segments.
// Each document family has its own Segmenter; Table picks one by family.
package segment

import (
	"github.com/brunobiangulo/lexgraph/classify"
)

// Role is the closed per-family segment vocabulary.
type Role string

const (
	RoleArticle          Role = "article"
	RoleHeader           Role = "header"
	RoleFacts            Role = "facts"
	RoleIssues           Role = "issues"
	RoleReasons          Role = "reasons"
	RoleDisposition      Role = "disposition"
	RoleSignatures       Role = "signatures"
	RoleAbstract         Role = "abstract"
	RoleBody             Role = "body"
	RoleConclusion       Role = "conclusion"
	RoleNotes            Role = "notes"
	RoleBibliography     Role = "bibliography"
	RoleExecutiveSummary Role = "executive_summary"
	RoleObservation      Role = "observation"
	RoleResponse         Role = "response"
	RoleRecommendation   Role = "recommendation"
	RoleAnnexCaption     Role = "annex_caption"
	RoleWholeDocument    Role = "whole_document"
)

// Roles lists every role, in the order above.
var Roles = []Role{
	RoleArticle, RoleHeader,
	RoleFacts, RoleIssues, RoleReasons, RoleDisposition, RoleSignatures,
	RoleAbstract, RoleBody, RoleConclusion, RoleNotes, RoleBibliography,
	RoleExecutiveSummary, RoleObservation, RoleResponse, RoleRecommendation, RoleAnnexCaption,
	RoleWholeDocument,
}

// Segment is the atomic retrievable unit of a document.
type Segment struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"document_id"`
	Family      classify.Family `json:"type"`
	Role        Role            `json:"role"`
	SectionPath string          `json:"section_path,omitempty"`
	Heading     string          `json:"heading,omitempty"`
	Text        string          `json:"text"`
	Meta        Metadata        `json:"metadata"`
}

// Label returns the section path when there is one, else the upper-cased role.
func (s Segment) Label() string {
	if s.SectionPath != "" {
		return s.SectionPath
	}
	return upper(string(s.Role))
}

// Metadata carries the role-specific attributes of a segment. Only the fields
// relevant to the role are set.
type Metadata struct {
	// Statutes
	ArticleNumber string `json:"article_number,omitempty"`
	ArticleTitle  string `json:"article_title,omitempty"`
	ArticleRole   string `json:"article_role,omitempty"`
	Part          int    `json:"part,omitempty"`

	// Judgments
	ParagraphRange string `json:"paragraph_range,omitempty"`

	// Doctrine
	Level int `json:"level,omitempty"`

	// Public reports
	ObservationID    string   `json:"observation_id,omitempty"`
	RecommendationID string   `json:"recommendation_id,omitempty"`
	ResponseTo       string   `json:"response_to,omitempty"`
	Respondent       string   `json:"respondent,omitempty"`
	FollowUp         string   `json:"follow_up,omitempty"`
	Entities         []Entity `json:"entities_mentioned,omitempty"`
	Irregularities   []string `json:"irregularities,omitempty"`
	Amounts          []string `json:"amounts,omitempty"`
	Dates            []string `json:"dates,omitempty"`
	ProcurementRefs  []string `json:"procurement_refs,omitempty"`
	StatutesCited    []string `json:"statutes_cited,omitempty"`

	// Whole-document fallback
	Strategy    string `json:"strategy,omitempty"`
	LengthChars int    `json:"length_chars,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
}

// Entity is a canonical organisation mentioned in a segment.
type Entity struct {
	Name   string `json:"name"`
	Sector string `json:"sector,omitempty"`
}

// EntityResolver maps raw names to canonical entities. Resolve returns unknown
// names unchanged with an empty sector; Lookup reports whether an alias is
// known at all.
type EntityResolver interface {
	Lookup(alias string) (Entity, bool)
	Resolve(names []string) []Entity
}

// DocMeta is the per-document context handed to a Segmenter.
type DocMeta struct {
	DocumentID string
	Title      string
	// MaxChars bounds the whole-document fallback text; 0 means unbounded.
	MaxChars int
}

// Segmenter turns normalized text into ordered segments. Implementations are
// pure: identical input yields identical output.
type Segmenter interface {
	Segment(text string, meta DocMeta) []Segment
}

// Table maps each scored family to its Segmenter.
type Table map[classify.Family]Segmenter

// NewTable builds the stock family table. resolver may be nil, in which case
// report entities are kept unresolved.
func NewTable(resolver EntityResolver) Table {
	return Table{
		classify.Statute:      StatuteSegmenter{},
		classify.Judgment:     JudgmentSegmenter{},
		classify.Doctrine:     DoctrineSegmenter{MaxSegments: DefaultDoctrineCap},
		classify.PublicReport: ReportSegmenter{Resolver: resolver},
	}
}

// Segment normalizes text, dispatches on family and falls back to a single
// whole-document segment when the family is unknown or the segmenter finds no
// structure. Empty text yields no segments.
func (t Table) Segment(family classify.Family, text string, meta DocMeta) []Segment {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	var segs []Segment
	if s, ok := t[family]; ok {
		segs = s.Segment(norm, meta)
	}
	if len(segs) == 0 {
		whole := WholeDocument(norm, meta)
		if family != "" {
			whole.Family = family
		}
		return []Segment{whole}
	}
	for i := range segs {
		segs[i].DocumentID = meta.DocumentID
		segs[i].Family = family
	}
	return segs
}

// WholeDocument wraps the full text in a single fallback segment.
func WholeDocument(text string, meta DocMeta) Segment {
	body, truncated := text, false
	if meta.MaxChars > 0 {
		if cut := truncateRunes(text, meta.MaxChars); len(cut) < len(text) {
			body, truncated = cut, true
		}
	}
	return Segment{
		ID:         "seg_0001",
		DocumentID: meta.DocumentID,
		Family:     classify.Unknown,
		Role:       RoleWholeDocument,
		Text:       body,
		Meta: Metadata{
			Strategy:    "no-op",
			LengthChars: len([]rune(text)),
			Truncated:   truncated,
		},
	}
}
