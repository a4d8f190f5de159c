package graph

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/lexgraph/cite"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/segment"
)

// Result is the outcome of one extraction. Unresolved repeats the edges whose
// segment, case or statute target was not found.
type Result struct {
	Edges      []Edge `json:"edges"`
	Unresolved []Edge `json:"unresolved"`
}

// Extractor turns segments into edges. It holds no state between calls.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// contextWindow is how many bytes left of a statute citation are inspected
// for an interpretation or application verb.
const contextWindow = 80

var (
	interpretCue = regexp.MustCompile(`(?i)interpr`)
	applyCue     = regexp.MustCompile(`(?i)appliqu|en vertu|en application`)
	numeralHead  = regexp.MustCompile(`^\s*([IVXLC]+|[A-Z]|\d+(?:\.\d+)*)\s*[.)\-–—]`)
)

type collector struct {
	documentID string
	seen       map[string]bool
	res        Result
}

func (c *collector) add(e Edge) {
	key := e.From + "\x00" + e.Type + "\x00" + e.ToRef
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	e.DocumentID = c.documentID
	e.ID = edgeID(c.documentID, e.From, e.Type, e.ToRef)
	c.res.Edges = append(c.res.Edges, e)
	if e.Unresolved() {
		c.res.Unresolved = append(c.res.Unresolved, e)
	}
}

// Extract scans every segment of one document and returns the deduplicated
// edge list. Edges are keyed on (from, type, to_ref).
func (x *Extractor) Extract(family classify.Family, documentID string, segs []segment.Segment) Result {
	c := &collector{documentID: documentID, seen: make(map[string]bool)}

	switch family {
	case classify.Statute:
		idx := BuildArticleIndex(segs)
		for _, s := range segs {
			c.articleRefs(s, idx)
			c.citations(s)
		}
	case classify.Judgment:
		for _, s := range segs {
			c.citations(s)
			c.judgmentRelations(s)
		}
	case classify.Doctrine:
		heads := headingIndex(segs)
		for _, s := range segs {
			c.citations(s)
			c.doctrineRelations(s, heads)
		}
	case classify.PublicReport:
		c.reportStructure(segs)
		for _, s := range segs {
			c.citations(s)
		}
	default:
		for _, s := range segs {
			c.citations(s)
		}
	}

	if c.res.Edges == nil {
		c.res.Edges = []Edge{}
	}
	if c.res.Unresolved == nil {
		c.res.Unresolved = []Edge{}
	}
	return c.res
}

// articleRefs emits the internal cross-references of a statute segment.
func (c *collector) articleRefs(s segment.Segment, idx ArticleIndex) {
	for _, r := range cite.Articles(s.Text) {
		switch r.Kind {
		case cite.KindRange:
			c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelRefersToRange, Surface: r.Surface, DstType: DstSegment})
		case cite.KindArticle:
			to := idx[r.Article]
			if to == s.ID {
				continue
			}
			c.add(Edge{From: s.ID, To: to, ToRef: r.Ref, Type: RelRefersTo, Surface: r.Surface, DstType: DstSegment})
		}
	}
}

// citations emits citesCase and citesStatute for any family.
func (c *collector) citations(s segment.Segment) {
	for _, r := range cite.Statutes(s.Text) {
		c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelCitesStatute, Surface: r.Surface, DstType: DstStatute})
	}
	for _, r := range cite.Cases(s.Text) {
		c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelCitesCase, Surface: r.Surface, DstType: DstCase})
	}
}

func leftContext(text string, offset int) string {
	lo := offset - contextWindow
	if lo < 0 {
		lo = 0
	}
	return text[lo:offset]
}

func (c *collector) judgmentRelations(s segment.Segment) {
	for _, r := range cite.Statutes(s.Text) {
		left := leftContext(s.Text, r.Offset)
		if interpretCue.MatchString(left) {
			c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelInterprets, Surface: r.Surface, DstType: DstStatute})
		}
		if applyCue.MatchString(left) {
			c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelApplies, Surface: r.Surface, DstType: DstStatute})
		}
	}
}

// headingIndex maps the leading numeral of each doctrine heading ("II",
// "B", "3.1") to its segment.
func headingIndex(segs []segment.Segment) map[string]string {
	idx := make(map[string]string)
	for _, s := range segs {
		m := numeralHead.FindStringSubmatch(s.Heading)
		if m == nil {
			continue
		}
		if _, ok := idx[m[1]]; !ok {
			idx[m[1]] = s.ID
		}
	}
	return idx
}

func (c *collector) doctrineRelations(s segment.Segment, heads map[string]string) {
	for _, r := range cite.Cases(s.Text) {
		c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelDiscusses, Surface: r.Surface, DstType: DstCase})
	}
	for _, r := range cite.Statutes(s.Text) {
		c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelInterprets, Surface: r.Surface, DstType: DstStatute})
	}
	for _, r := range cite.Reviews(s.Text) {
		c.add(Edge{From: s.ID, ToRef: r.Ref, Type: RelCites, Surface: r.Surface, DstType: DstDocument})
	}
	for _, r := range cite.Structural(s.Text) {
		to := heads[r.Ref]
		if to == s.ID {
			continue
		}
		c.add(Edge{From: s.ID, To: to, ToRef: r.Ref, Type: RelRefersTo, Surface: r.Surface, DstType: DstSegment})
	}
}

// reportStructure emits the edges a public report carries by construction:
// document to observation and recommendation, observation to respondent,
// recommendation to observation, and segment to entity and irregularity.
func (c *collector) reportStructure(segs []segment.Segment) {
	doc := DocumentKey(c.documentID)
	observations := make(map[string]string)
	for _, s := range segs {
		if s.Role == segment.RoleObservation && s.Meta.ObservationID != "" {
			if _, ok := observations[s.Meta.ObservationID]; !ok {
				observations[s.Meta.ObservationID] = s.ID
			}
		}
	}

	for _, s := range segs {
		switch s.Role {
		case segment.RoleObservation:
			c.add(Edge{From: doc, To: s.ID, ToRef: "obs." + s.Meta.ObservationID, Type: RelHasObservation, DstType: DstSegment})
		case segment.RoleRecommendation:
			c.add(Edge{From: doc, To: s.ID, ToRef: "rec." + s.Meta.RecommendationID, Type: RelHasRecommendation, DstType: DstSegment})
			if obs, ok := observations[s.Meta.ResponseTo]; ok {
				c.add(Edge{From: s.ID, To: obs, ToRef: "obs." + s.Meta.ResponseTo, Type: RelImplements, DstType: DstSegment})
			}
		case segment.RoleResponse:
			if obs, ok := observations[s.Meta.ResponseTo]; ok && s.Meta.Respondent != "" {
				c.add(Edge{From: obs, ToRef: s.Meta.Respondent, Type: RelElicitsResponseFrom, DstType: DstEntity})
			}
		}

		rel := RelCovers
		if s.Role == segment.RoleRecommendation {
			rel = RelTargets
		}
		for _, e := range s.Meta.Entities {
			if name := strings.TrimSpace(e.Name); name != "" {
				c.add(Edge{From: s.ID, ToRef: name, Type: rel, DstType: DstEntity})
			}
		}
		for _, irr := range s.Meta.Irregularities {
			c.add(Edge{From: s.ID, ToRef: irr, Type: RelAddressesIrregularity, DstType: DstIrregularity})
		}
	}
}
