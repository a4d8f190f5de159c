// Package graph extracts the citation and cross-reference graph of a
// segmented document and walks it for retrieval expansion.
package graph

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Relation types.
const (
	RelRefersTo              = "refersTo"
	RelRefersToRange         = "refersToRange"
	RelCitesCase             = "citesCase"
	RelCitesStatute          = "citesStatute"
	RelInterprets            = "interprets"
	RelApplies               = "applies"
	RelDiscusses             = "discusses"
	RelCites                 = "cites"
	RelHasObservation        = "hasObservation"
	RelHasRecommendation     = "hasRecommendation"
	RelElicitsResponseFrom   = "elicitsResponseFrom"
	RelCovers                = "covers"
	RelTargets               = "targets"
	RelAddressesIrregularity = "addressesIrregularity"
	RelImplements            = "implements"
)

// Destination kinds.
const (
	DstSegment      = "segment"
	DstDocument     = "document"
	DstCase         = "case"
	DstStatute      = "statute"
	DstEntity       = "entity"
	DstIrregularity = "irregularity"
)

// DocumentKey is the From value of edges that start at the document itself
// rather than at one of its segments.
func DocumentKey(documentID string) string { return "doc:" + documentID }

// IsDocumentKey reports whether from names a document rather than a segment.
func IsDocumentKey(from string) bool { return strings.HasPrefix(from, "doc:") }

// Edge is one directed relation between a segment and a target.
type Edge struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	From       string `json:"from"`
	// To is the target segment id; empty when the target is not a segment
	// of this document or could not be resolved.
	To      string `json:"to"`
	ToRef   string `json:"to_ref"`
	Type    string `json:"type"`
	Surface string `json:"surface,omitempty"`
	DstType string `json:"dst_type"`
}

// MarshalJSON renders an empty To as null.
func (e Edge) MarshalJSON() ([]byte, error) {
	type plain Edge
	out := struct {
		plain
		To *string `json:"to"`
	}{plain: plain(e)}
	if e.To != "" {
		out.To = &e.To
	}
	return json.Marshal(out)
}

// Unresolved reports whether the edge points at a segment, case or statute
// that was not found. Ranges are resolved lazily and never count.
func (e Edge) Unresolved() bool {
	if e.To != "" || e.Type == RelRefersToRange {
		return false
	}
	switch e.DstType {
	case DstSegment, DstCase, DstStatute:
		return true
	}
	return false
}

// Citation reports whether the edge is a case or statute citation, which is
// attached to its segment as metadata rather than followed.
func (e Edge) Citation() bool {
	return e.Type == RelCitesCase || e.Type == RelCitesStatute
}

// edgeNamespace seeds the name-based edge ids so that extracting the same
// document twice yields the same ids.
var edgeNamespace = uuid.MustParse("6f1c3b2e-8d4a-4f6b-9c1e-2a7d5e0b9f31")

func edgeID(documentID, from, rel, toRef string) string {
	return uuid.NewSHA1(edgeNamespace, []byte(documentID+"\x00"+from+"\x00"+rel+"\x00"+toRef)).String()
}
