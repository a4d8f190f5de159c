package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// maxArticleTokens is the size above which an article is split at its
// alinea markers.
const maxArticleTokens = 900

// Level is a hierarchy level of a code or regulation, outermost first.
type Level int

const (
	LevelLivre Level = iota
	LevelTitre
	LevelChapitre
	LevelSection
	LevelSousSection
	numLevels
)

var levelNames = [numLevels]string{"Livre", "Titre", "Chapitre", "Section", "Sous-section"}

func (l Level) String() string {
	if l < 0 || l >= numLevels {
		return "level"
	}
	return levelNames[l]
}

// Heading is one active hierarchy level.
type Heading struct {
	Number string
	Title  string
}

func (h Heading) active() bool { return h.Number != "" }

// Hierarchy holds the active heading of every level. The zero value has no
// active level.
type Hierarchy [numLevels]Heading

// Set activates a level and clears every deeper one.
func (h *Hierarchy) Set(l Level, number, title string) {
	h[l] = Heading{Number: number, Title: title}
	for i := l + 1; i < numLevels; i++ {
		h[i] = Heading{}
	}
}

// Path renders the active levels, outermost first.
func (h Hierarchy) Path() []string {
	var out []string
	for i, hd := range h {
		if !hd.active() {
			continue
		}
		p := Level(i).String() + " " + hd.Number
		if hd.Title != "" {
			p += " — " + hd.Title
		}
		out = append(out, p)
	}
	return out
}

// ---------------------------------------------------------------------------
// Line classification
// ---------------------------------------------------------------------------

type lineKind int

const (
	lineBody lineKind = iota
	lineHierarchy
	lineArticle
)

func (k lineKind) String() string {
	switch k {
	case lineHierarchy:
		return "hierarchy"
	case lineArticle:
		return "article"
	}
	return "body"
}

type lineInfo struct {
	kind   lineKind
	level  Level
	number string
	title  string
}

const (
	headingNumeral = `((?:[IVXLC]+|\d+)(?:er)?)`
	headingTail    = `(?:\s*[—–\-:.]\s*(.*))?$`
)

var hierarchyPatterns = [numLevels]*regexp.Regexp{
	LevelLivre:       regexp.MustCompile(`(?i)^\s*LIVRE\s+` + headingNumeral + headingTail),
	LevelTitre:       regexp.MustCompile(`(?i)^\s*TITRE\s+` + headingNumeral + headingTail),
	LevelChapitre:    regexp.MustCompile(`(?i)^\s*CHAPITRE\s+` + headingNumeral + headingTail),
	LevelSection:     regexp.MustCompile(`(?i)^\s*SECTION\s+` + headingNumeral + headingTail),
	LevelSousSection: regexp.MustCompile(`(?i)^\s*SOUS-SECTION\s+` + headingNumeral + headingTail),
}

var articleHeader = regexp.MustCompile(`(?i)^\s*(?:Article|Art\.?)\s+(\d+(?:\.\d+)*)(?:er)?` + headingTail)

func classifyLine(line string) lineInfo {
	if m := articleHeader.FindStringSubmatch(line); m != nil {
		return lineInfo{kind: lineArticle, number: m[1], title: strings.TrimSpace(m[2])}
	}
	for i, p := range hierarchyPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			return lineInfo{kind: lineHierarchy, level: Level(i), number: m[1], title: strings.TrimSpace(m[2])}
		}
	}
	return lineInfo{kind: lineBody}
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

type pendingArticle struct {
	number string
	title  string
	path   []string
	lines  []string
}

// statuteMachine reconstructs the code tree from a flat line sequence. The
// state is the active hierarchy plus at most one pending article; text seen
// outside any article goes to the preamble buffer.
type statuteMachine struct {
	hier     Hierarchy
	pending  *pendingArticle
	preamble block
	out      []Segment
	ids      map[string]int
	headers  int
	articles int
}

func newStatuteMachine() *statuteMachine {
	return &statuteMachine{ids: make(map[string]int)}
}

// step feeds one line and returns the transition taken.
func (m *statuteMachine) step(line string) lineKind {
	info := classifyLine(line)
	switch info.kind {
	case lineHierarchy:
		m.flush()
		m.hier.Set(info.level, info.number, info.title)
	case lineArticle:
		m.flush()
		m.pending = &pendingArticle{
			number: info.number,
			title:  info.title,
			path:   m.hier.Path(),
		}
	default:
		if m.pending != nil {
			m.pending.lines = append(m.pending.lines, line)
		} else {
			m.preamble.add(line)
		}
	}
	return info.kind
}

// flush emits whatever is buffered: the preamble as a header segment and the
// pending article as one or more article segments.
func (m *statuteMachine) flush() {
	if !m.preamble.empty() {
		m.headers++
		m.out = append(m.out, Segment{
			ID:          m.uniqueID(fmt.Sprintf("seg:hdr.%d", m.headers)),
			Role:        RoleHeader,
			SectionPath: strings.Join(m.hier.Path(), " > "),
			Text:        m.preamble.text(),
		})
	}
	m.preamble = block{}

	if m.pending == nil {
		return
	}
	a := m.pending
	m.pending = nil

	body := strings.TrimSpace(strings.Join(a.lines, "\n"))
	if body == "" {
		return
	}

	heading := "Article " + a.number
	if a.title != "" {
		heading += " — " + a.title
	}
	role := guessArticleRole(a.title, firstLine(body))

	parts := []string{body}
	if EstimateTokens(body) > maxArticleTokens {
		if p := splitAlineas(body); len(p) > 1 {
			parts = p
		}
	}

	for i, part := range parts {
		num := a.number
		if i > 0 {
			num = fmt.Sprintf("%s-%d", a.number, i+1)
		}
		path := append(append([]string(nil), a.path...), "Article "+num)
		meta := Metadata{ArticleNumber: num, ArticleTitle: a.title, ArticleRole: role}
		if len(parts) > 1 {
			meta.Part = i + 1
		}
		m.out = append(m.out, Segment{
			ID:          m.uniqueID("seg:art." + num),
			Role:        RoleArticle,
			SectionPath: strings.Join(path, " > "),
			Heading:     heading,
			Text:        part,
			Meta:        meta,
		})
		m.articles++
	}
}

func (m *statuteMachine) uniqueID(id string) string {
	m.ids[id]++
	if n := m.ids[id]; n > 1 {
		return fmt.Sprintf("%s~%d", id, n)
	}
	return id
}

// StatuteSegmenter splits codes, laws and regulations into articles.
type StatuteSegmenter struct{}

// Segment returns nil when no article could be found so the caller can fall
// back to whole-document segmentation.
func (StatuteSegmenter) Segment(text string, _ DocMeta) []Segment {
	m := newStatuteMachine()
	for _, line := range strings.Split(text, "\n") {
		m.step(line)
	}
	m.flush()
	if m.articles == 0 {
		return nil
	}
	return m.out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Numbers take "1.", "1)", "1°" or "1-"; roman numerals and lowercase letters
// only "." or ")", so prose such as "a-t-il" never opens an alinea.
var alineaStart = regexp.MustCompile(`^\s*(?:\d{1,3}\s?[.)°-]|[IVX]{1,4}\s?[.)]|[a-z][.)])\s*\S`)

// splitAlineas cuts an article body before each numbered or lettered
// paragraph start.
func splitAlineas(body string) []string {
	var parts []string
	var cur []string
	for _, line := range strings.Split(body, "\n") {
		if alineaStart.MatchString(line) && strings.TrimSpace(strings.Join(cur, "\n")) != "" {
			parts = append(parts, strings.TrimSpace(strings.Join(cur, "\n")))
			cur = nil
		}
		cur = append(cur, line)
	}
	if rest := strings.TrimSpace(strings.Join(cur, "\n")); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

var (
	definitionsCue = regexp.MustCompile(`(?i)d[ée]finition|on entend par|au sens du présent`)
	exceptionCue   = regexp.MustCompile(`(?i)exception|par dérogation`)
	procedureCue   = regexp.MustCompile(`(?i)modalit|procédure`)
	scopeCue       = regexp.MustCompile(`(?i)champ d.?application|s['’]applique`)
)

func guessArticleRole(title, first string) string {
	s := title + " " + first
	switch {
	case definitionsCue.MatchString(s):
		return "definitions"
	case exceptionCue.MatchString(s):
		return "exception"
	case procedureCue.MatchString(s):
		return "procedure"
	case scopeCue.MatchString(s):
		return "scope"
	}
	return "rule"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
