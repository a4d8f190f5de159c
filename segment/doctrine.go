package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultDoctrineCap bounds the number of segments produced for one article.
const DefaultDoctrineCap = 60

const maxHeadingRunes = 140

type doctrineRule struct {
	role    Role
	level   int
	pattern *regexp.Regexp
}

var doctrineRules = []doctrineRule{
	{RoleAbstract, 1, regexp.MustCompile(`(?i)^\s*(?:Résumé|Abstract|Summary)\s*:?\s*$`)},
	{RoleBody, 1, regexp.MustCompile(`(?i)^\s*Introduction(?:\s+générale)?\s*:?\s*$`)},
	{RoleConclusion, 1, regexp.MustCompile(`(?i)^\s*Conclusions?(?:\s+générale)?\s*:?\s*$`)},
	{RoleNotes, 1, regexp.MustCompile(`(?i)^\s*(?:Notes(?:\s+de\s+bas\s+de\s+page)?|Footnotes)\s*:?\s*$`)},
	{RoleBibliography, 1, regexp.MustCompile(`(?i)^\s*(?:Bibliographie|Bibliography|Références(?:\s+bibliographiques)?|References)\s*:?\s*$`)},
}

var (
	romanSection   = regexp.MustCompile(`^\s*([IVXLC]{1,6})\s*[.)\-–—]\s+\p{Lu}`)
	letterSection  = regexp.MustCompile(`^\s*([A-Z])\s*[.)]\s+\p{Lu}`)
	numericSection = regexp.MustCompile(`^\s*(\d{1,2}(?:\.\d{1,2}){0,3})[.)]\s+\p{Lu}`)
)

// matchDoctrineHeading returns the role and level (1-3) of a heading line.
func matchDoctrineHeading(line string) (Role, int, bool) {
	if utf8.RuneCountInString(strings.TrimSpace(line)) > maxHeadingRunes {
		return "", 0, false
	}
	for _, r := range doctrineRules {
		if r.pattern.MatchString(line) {
			return r.role, r.level, true
		}
	}
	if m := romanSection.FindStringSubmatch(line); m != nil {
		// A lone C or L is far more often a subsection letter than 100 or 50.
		if m[1] == "C" || m[1] == "L" {
			return RoleBody, 2, true
		}
		return RoleBody, 1, true
	}
	if letterSection.MatchString(line) {
		return RoleBody, 2, true
	}
	if numericSection.MatchString(line) {
		return RoleBody, 3, true
	}
	return "", 0, false
}

// DoctrineSegmenter splits scholarly articles and commentaries on their
// heading outline.
type DoctrineSegmenter struct {
	MaxSegments int
}

func (d DoctrineSegmenter) Segment(text string, _ DocMeta) []Segment {
	limit := d.MaxSegments
	if limit <= 0 {
		limit = DefaultDoctrineCap
	}

	var (
		out   []Segment
		stack [4]string
		cur   = block{}
		role  = RoleHeader
		level = 0
	)

	emit := func() {
		body := cur.text()
		if body == "" {
			return
		}
		if len(out) >= limit {
			last := &out[len(out)-1]
			if cur.heading != "" {
				body = cur.heading + "\n" + body
			}
			last.Text += "\n\n" + body
			return
		}
		var path []string
		for _, p := range stack[1:] {
			if p != "" {
				path = append(path, p)
			}
		}
		out = append(out, Segment{
			ID:          fmt.Sprintf("seg:doc:%03d", len(out)+1),
			Role:        role,
			SectionPath: strings.Join(path, " > "),
			Heading:     cur.heading,
			Text:        body,
			Meta:        Metadata{Level: level},
		})
	}

	for _, line := range strings.Split(text, "\n") {
		r, lvl, ok := matchDoctrineHeading(line)
		if !ok {
			cur.add(line)
			continue
		}
		emit()
		label := strings.TrimSpace(line)
		stack[lvl] = label
		for i := lvl + 1; i < len(stack); i++ {
			stack[i] = ""
		}
		cur = block{heading: label}
		role, level = r, lvl
	}
	emit()
	return out
}
