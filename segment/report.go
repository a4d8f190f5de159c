package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// GeneralScope is the recommendation id scope for recommendations that do not
// belong to an observation: "GEN-1", "GEN-2", ...
const GeneralScope = "GEN"

var (
	execSummaryLine = regexp.MustCompile(`(?i)^\s*(?:Synthèse|Résumé exécutif|Executive summary|Note de synthèse|Résumé)\s*:?\s*$`)
	annexLine       = regexp.MustCompile(`(?i)^\s*Annexes?\b`)
	bodyHeadingLine = regexp.MustCompile(`^\s*(?:(?i:Introduction|Méthodologie|Méthode|Contexte|Constats?|Observations|Conclusions?)|(?i:Chapitre|Partie)\s+\S+.*|[IVX]{1,4}\s*[.)\-–—]\s+\p{Lu}.{0,120})\s*:?\s*$`)
	observationLine = regexp.MustCompile(`(?i)^\s*Observation\s*(?:n\s*[°o]\.?\s*)?(\d+)\b\s*[:.\-–—]?\s*(.*)$`)

	generalRecommendations = regexp.MustCompile(`(?i)^\s*Recomm[ae]ndations?\s+(?:générales?|transversales?|general)\s*:?\s*$`)
	recommendationKeyword  = regexp.MustCompile(`(?i)^\s*Recomm[ae]ndations?\b(?:\s*n\s*[°o]\.?\s*\d+)?\s*[:.\-–—]?\s*(.*)$`)
	responseKeyword        = regexp.MustCompile(`(?i)^\s*(?:Réponses?|Response)\b([^:]*)(?::\s*(.*))?$`)
	respondentLead         = regexp.MustCompile(`(?i)^\s*(?:des|du|de|d['’]|of|from)\s*(?:l['’]\s*|la\s+|le\s+|les\s+|the\s+)?`)

	listItem = regexp.MustCompile(`^\s*(?:[-•*–—▪]|\d{1,2}[.)°]|[a-z][.)])\s+\S`)
)

type reportBlockKind int

const (
	kindHeader reportBlockKind = iota
	kindExecSummary
	kindBody
	kindAnnex
	kindObservation
	kindRecommendations
	kindResponse
)

type reportBlock struct {
	kind  reportBlockKind
	obsID string
	block
}

// ReportSegmenter splits public audit and inspection reports. Observation
// blocks are partitioned into observation, response and recommendation
// segments; recommendation text is split into list items.
type ReportSegmenter struct {
	Resolver EntityResolver
}

func (r ReportSegmenter) Segment(text string, _ DocMeta) []Segment {
	blocks := splitReportBlocks(text)

	e := &reportEmitter{ids: make(map[string]int), seq: make(map[string]int)}
	for _, b := range blocks {
		switch b.kind {
		case kindObservation:
			e.observation(b)
		case kindRecommendations:
			e.recommendations(GeneralScope, "", b.lines)
		case kindResponse:
			e.response("", b.heading, b.lines)
		default:
			e.plain(b)
		}
	}

	for i := range e.out {
		enrich(&e.out[i], r.Resolver)
		if e.out[i].Meta.Respondent != "" && r.Resolver != nil {
			if ents := r.Resolver.Resolve([]string{e.out[i].Meta.Respondent}); len(ents) > 0 {
				e.out[i].Meta.Respondent = ents[0].Name
			}
		}
	}
	return e.out
}

// splitReportBlocks assigns every line to a top-level block. Inside an
// observation only another observation, an annex, the executive summary or a
// body heading closes the block; recommendation and response keywords stay in
// it for partitioning.
func splitReportBlocks(text string) []*reportBlock {
	var blocks []*reportBlock
	cur := &reportBlock{kind: kindHeader}
	open := func(b *reportBlock) {
		blocks = append(blocks, cur)
		cur = b
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case observationLine.MatchString(line):
			m := observationLine.FindStringSubmatch(line)
			open(&reportBlock{kind: kindObservation, obsID: m[1], block: block{heading: strings.TrimSpace(line)}})
		case generalRecommendations.MatchString(line):
			open(&reportBlock{kind: kindRecommendations, block: block{heading: strings.TrimSpace(line)}})
		case execSummaryLine.MatchString(line):
			open(&reportBlock{kind: kindExecSummary, block: block{heading: strings.TrimSpace(line)}})
		case annexLine.MatchString(line):
			// The annex caption line is content, not a bare heading.
			open(&reportBlock{kind: kindAnnex})
			cur.add(line)
		case bodyHeadingLine.MatchString(line):
			open(&reportBlock{kind: kindBody, block: block{heading: strings.TrimSpace(line)}})
		case cur.kind != kindObservation && recommendationKeyword.MatchString(line):
			m := recommendationKeyword.FindStringSubmatch(line)
			if cur.kind != kindRecommendations {
				open(&reportBlock{kind: kindRecommendations, block: block{heading: strings.TrimSpace(line)}})
			}
			if rest := strings.TrimSpace(m[1]); rest != "" {
				cur.add(rest)
			}
		case cur.kind != kindObservation && responseKeyword.MatchString(line):
			open(&reportBlock{kind: kindResponse, block: block{heading: strings.TrimSpace(line)}})
			if m := responseKeyword.FindStringSubmatch(line); strings.TrimSpace(m[2]) != "" {
				cur.add(m[2])
			}
		default:
			cur.add(line)
		}
	}
	blocks = append(blocks, cur)
	return blocks
}

type reportEmitter struct {
	out []Segment
	ids map[string]int
	seq map[string]int
	gen int
}

func (e *reportEmitter) uniqueID(id string) string {
	e.ids[id]++
	if n := e.ids[id]; n > 1 {
		return fmt.Sprintf("%s~%d", id, n)
	}
	return id
}

func (e *reportEmitter) add(s Segment) {
	if s.Text == "" {
		return
	}
	s.ID = e.uniqueID(s.ID)
	e.out = append(e.out, s)
}

var plainRoles = map[reportBlockKind]struct {
	role Role
	slug string
}{
	kindHeader:      {RoleHeader, "header"},
	kindExecSummary: {RoleExecutiveSummary, "exec"},
	kindBody:        {RoleBody, "body"},
	kindAnnex:       {RoleAnnexCaption, "annex"},
}

func (e *reportEmitter) plain(b *reportBlock) {
	pr := plainRoles[b.kind]
	body := b.text()
	if body == "" {
		return
	}
	e.seq[pr.slug]++
	e.add(Segment{
		ID:          fmt.Sprintf("seg:%s:%03d", pr.slug, e.seq[pr.slug]),
		Role:        pr.role,
		SectionPath: b.heading,
		Heading:     b.heading,
		Text:        body,
	})
}

// observation partitions an observation block at the first response keyword
// and the first recommendation keyword.
func (e *reportEmitter) observation(b *reportBlock) {
	obsID := b.obsID
	respAt, recAt := -1, -1
	for i, line := range b.lines {
		if respAt < 0 && responseKeyword.MatchString(line) {
			respAt = i
		}
		if recAt < 0 && recommendationKeyword.MatchString(line) {
			recAt = i
		}
	}

	end := len(b.lines)
	for _, at := range []int{respAt, recAt} {
		if at >= 0 && at < end {
			end = at
		}
	}

	path := "Observation " + obsID
	e.add(Segment{
		ID:          "seg:obs." + obsID,
		Role:        RoleObservation,
		SectionPath: path,
		Heading:     b.heading,
		Text:        strings.TrimSpace(strings.Join(b.lines[:end], "\n")),
		Meta:        Metadata{ObservationID: obsID},
	})

	// The response and recommendation parts each run to the next keyword
	// position or the end of the block.
	sliceFrom := func(at int) []string {
		stop := len(b.lines)
		for _, other := range []int{respAt, recAt} {
			if other > at && other < stop {
				stop = other
			}
		}
		return b.lines[at:stop]
	}

	type part struct {
		at  int
		rec bool
	}
	var parts []part
	if respAt >= 0 {
		parts = append(parts, part{respAt, false})
	}
	if recAt >= 0 {
		parts = append(parts, part{recAt, true})
	}
	if len(parts) == 2 && parts[1].at < parts[0].at {
		parts[0], parts[1] = parts[1], parts[0]
	}

	for _, p := range parts {
		lines := sliceFrom(p.at)
		head := lines[0]
		if p.rec {
			m := recommendationKeyword.FindStringSubmatch(head)
			body := append([]string{m[1]}, lines[1:]...)
			e.recommendations(obsID, path, body)
			continue
		}
		e.response(obsID, strings.TrimSpace(head), lines)
	}
}

// response emits a response segment. lines[0] may be the keyword line itself;
// only its text after a colon is content.
func (e *reportEmitter) response(obsID, heading string, lines []string) {
	respondent := ""
	if m := responseKeyword.FindStringSubmatch(heading); m != nil {
		respondent = strings.TrimSpace(respondentLead.ReplaceAllString(m[1], ""))
		respondent = strings.TrimRight(respondent, " .,;")
	}
	if len(lines) > 0 {
		if m := responseKeyword.FindStringSubmatch(lines[0]); m != nil {
			lines = append([]string{m[2]}, lines[1:]...)
		}
	}

	id := "seg:resp"
	path := "Réponse"
	if obsID != "" {
		id = "seg:obs." + obsID + ":response"
		path = "Observation " + obsID + " > Réponse"
	} else {
		e.seq["resp"]++
		id = fmt.Sprintf("seg:resp:%03d", e.seq["resp"])
	}
	e.add(Segment{
		ID:          id,
		Role:        RoleResponse,
		SectionPath: path,
		Heading:     heading,
		Text:        strings.TrimSpace(strings.Join(lines, "\n")),
		Meta: Metadata{
			ObservationID: obsID,
			ResponseTo:    obsID,
			Respondent:    respondent,
		},
	})
}

// recommendations splits recommendation text into list items and emits one
// segment per item with id {scope}-{idx}. scope is the observation id or
// GeneralScope; general recommendations are numbered across the document.
func (e *reportEmitter) recommendations(scope, parentPath string, lines []string) {
	items := splitItems(lines)
	for i, item := range items {
		idx := i + 1
		obsID := scope
		if scope == GeneralScope {
			e.gen++
			idx = e.gen
			obsID = ""
		}
		recID := fmt.Sprintf("%s-%d", scope, idx)
		path := "Recommandation " + recID
		if parentPath != "" {
			path = parentPath + " > " + path
		}
		e.add(Segment{
			ID:          "seg:rec." + recID,
			Role:        RoleRecommendation,
			SectionPath: path,
			Text:        item,
			Meta: Metadata{
				RecommendationID: recID,
				ObservationID:    obsID,
				ResponseTo:       obsID,
			},
		})
	}
}

// splitItems groups lines into list entries. Text before the first marker is
// attached to the first entry; without markers the whole text is one entry.
func splitItems(lines []string) []string {
	var items [][]string
	var lead []string
	for _, line := range lines {
		switch {
		case listItem.MatchString(line):
			items = append(items, []string{line})
		case len(items) == 0:
			lead = append(lead, line)
		default:
			items[len(items)-1] = append(items[len(items)-1], line)
		}
	}
	if len(items) == 0 {
		items = [][]string{nil}
	}
	items[0] = append(lead, items[0]...)

	var out []string
	for _, it := range items {
		if t := strings.TrimSpace(strings.Join(it, "\n")); t != "" {
			out = append(out, t)
		}
	}
	return out
}
