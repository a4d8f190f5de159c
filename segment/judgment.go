package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// headingRule maps a line pattern to a judgment role. When keep is set the
// matching line is part of the content (a signature line) rather than a bare
// section title.
type headingRule struct {
	role    Role
	pattern *regexp.Regexp
	keep    bool
}

const headingPrefix = `(?i)^\s*(?:[IVXLC\d]+\s*[.)\-–—]\s*)?`

// judgmentHeadings is checked in order; the first match wins.
var judgmentHeadings = []headingRule{
	{role: RoleFacts, pattern: regexp.MustCompile(headingPrefix + `(?:Les faits|Faits|Exposé des faits|Contexte|Aperçu|Overview|Facts|Background)(?:\s+et\s+procédure)?\s*:?\s*$`)},
	{role: RoleIssues, pattern: regexp.MustCompile(headingPrefix + `(?:Questions? en litige|Moyens|Issues?|Grounds)\s*:?\s*$`)},
	{role: RoleDisposition, pattern: regexp.MustCompile(headingPrefix + `(?:Dispositif|Conclusion|Par ces motifs|Pour ces motifs|Order|Decision|Disposition)\s*[:,]?\s*$`)},
	{role: RoleReasons, pattern: regexp.MustCompile(headingPrefix + `(?:Motifs(?:\s+du\s+jugement)?|Analyse|Discussion|Reasons|Analysis)\s*:?\s*$`)},
	{role: RoleSignatures, pattern: regexp.MustCompile(`(?i)^\s*(?:\(s\)|Signé|Signatures?\s*:?\s*$)`), keep: true},
}

func matchJudgmentHeading(line string) (headingRule, bool) {
	for _, h := range judgmentHeadings {
		if h.pattern.MatchString(line) {
			return h, true
		}
	}
	return headingRule{}, false
}

var paragraphMarker = regexp.MustCompile(`(?m)^\s*\[(\d+)\]`)

// paragraphRange renders the span of bracketed paragraph numbers in text.
func paragraphRange(text string) string {
	ms := paragraphMarker.FindAllStringSubmatch(text, -1)
	if len(ms) == 0 {
		return ""
	}
	first, last := ms[0][1], ms[len(ms)-1][1]
	if first == last {
		return "¶" + first
	}
	return "¶" + first + "–¶" + last
}

// JudgmentSegmenter splits court decisions into facts, issues, reasons,
// disposition and signature blocks.
type JudgmentSegmenter struct{}

func (JudgmentSegmenter) Segment(text string, _ DocMeta) []Segment {
	type roleBlock struct {
		role Role
		block
	}
	var blocks []*roleBlock
	cur := &roleBlock{role: RoleHeader}
	found := false

	for _, line := range strings.Split(text, "\n") {
		h, ok := matchJudgmentHeading(line)
		if !ok {
			cur.add(line)
			continue
		}
		found = true
		if h.role == cur.role {
			if h.keep {
				cur.add(line)
			}
			continue
		}
		blocks = append(blocks, cur)
		cur = &roleBlock{role: h.role}
		if h.keep {
			cur.add(line)
		} else {
			cur.heading = strings.TrimSpace(line)
		}
	}
	blocks = append(blocks, cur)

	if !found {
		body := strings.TrimSpace(text)
		if body == "" {
			return nil
		}
		return []Segment{{
			ID:   "seg:reasons:001",
			Role: RoleReasons,
			Text: body,
			Meta: Metadata{ParagraphRange: paragraphRange(body)},
		}}
	}

	// Merge consecutive blocks of the same role; empty blocks between them
	// do not break a run.
	var merged []*roleBlock
	for _, b := range blocks {
		if b.empty() {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].role == b.role {
			merged[n-1].lines = append(merged[n-1].lines, b.lines...)
			continue
		}
		merged = append(merged, b)
	}

	seq := make(map[Role]int)
	out := make([]Segment, 0, len(merged))
	for _, b := range merged {
		seq[b.role]++
		body := b.text()
		out = append(out, Segment{
			ID:          fmt.Sprintf("seg:%s:%03d", b.role, seq[b.role]),
			Role:        b.role,
			SectionPath: upper(string(b.role)),
			Heading:     b.heading,
			Text:        body,
			Meta:        Metadata{ParagraphRange: paragraphRange(body)},
		})
	}
	return out
}
