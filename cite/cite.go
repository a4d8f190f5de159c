// Package cite detects legal references in running text: internal article
// cross-references, article ranges, statute citations, case citations,
// law-review references and supra/infra pointers.
package cite

import (
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a detected reference.
type Kind string

const (
	KindArticle    Kind = "article"    // bare article reference, internal to the document
	KindRange      Kind = "range"      // "articles 5 à 7"
	KindStatute    Kind = "statute"    // article qualified by a code or act name
	KindCase       Kind = "case"       // neutral, reporter or French court citation
	KindReview     Kind = "review"     // law review or doctrinal reference
	KindStructural Kind = "structural" // "supra, partie II"
)

// Reference is one detected reference.
type Reference struct {
	Kind    Kind   `json:"kind"`
	Surface string `json:"surface"`
	// Ref is the normalized target: "art.20.al.3", "art.5–art.7.1",
	// "art.1457 — Code civil", "2017 CSC 45".
	Ref     string `json:"ref"`
	Article string `json:"article,omitempty"`
	Alinea  string `json:"alinea,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Code    string `json:"code,omitempty"`
	Offset  int    `json:"offset"`
	end     int
}

// ArticleRef renders the normalized reference of an article number with an
// optional alinea.
func ArticleRef(number, alinea string) string {
	ref := "art." + number
	if alinea != "" {
		ref += ".al." + alinea
	}
	return ref
}

// RangeRef renders the normalized reference of an article range.
func RangeRef(from, to string) string {
	return "art." + from + "–art." + to
}

// Scan returns every reference found in text ordered by offset.
func Scan(text string) []Reference {
	var refs []Reference
	refs = append(refs, Articles(text)...)
	refs = append(refs, Cases(text)...)
	refs = append(refs, Reviews(text)...)
	refs = append(refs, Structural(text)...)
	sortRefs(refs)
	return refs
}

// Ranges detects article ranges.
func Ranges(text string) []Reference {
	var refs []Reference
	for _, loc := range rangePattern.FindAllStringSubmatchIndex(text, -1) {
		from, to := text[loc[2]:loc[3]], text[loc[4]:loc[5]]
		refs = append(refs, Reference{
			Kind:    KindRange,
			Surface: collapse(text[loc[0]:loc[1]]),
			Ref:     RangeRef(from, to),
			From:    from,
			To:      to,
			Offset:  loc[0],
			end:     loc[1],
		})
	}
	return refs
}

// Articles detects ranges, article lists and single article references.
// Lists and singles overlapping a range are skipped. Qualified references
// come back as KindStatute, bare ones as KindArticle. References that look
// like law-reporter page numbers are dropped.
func Articles(text string) []Reference {
	refs := Ranges(text)
	taken := spans(refs)

	scan(listPattern, text, func(loc []int) int {
		code, end := qualifier(text, loc[4:8])
		if end < 0 {
			end = loc[1]
		}
		if overlaps(taken, loc[0], end) || reporterContext(text, loc[0], end) {
			return end
		}
		surface := collapse(text[loc[0]:end])
		for _, num := range numberPattern.FindAllString(text[loc[2]:loc[3]], -1) {
			refs = append(refs, articleReference(surface, num, "", code, loc[0], end))
		}
		taken = append(taken, [2]int{loc[0], end})
		return end
	})

	scan(singlePattern, text, func(loc []int) int {
		code, end := qualifier(text, loc[6:10])
		if end < 0 {
			end = loc[1]
		}
		if overlaps(taken, loc[0], end) || reporterContext(text, loc[0], end) {
			return end
		}
		num := text[loc[2]:loc[3]]
		alinea := ""
		if loc[4] >= 0 {
			alinea = text[loc[4]:loc[5]]
		}
		refs = append(refs, articleReference(collapse(text[loc[0]:end]), num, alinea, code, loc[0], end))
		return end
	})

	sortRefs(refs)
	return refs
}

// scan runs p over text left to right. visit returns where the next search
// starts, so a qualifier trimmed back to its code name gives the following
// words back to the scan.
func scan(p *regexp.Regexp, text string, visit func(loc []int) int) {
	for pos := 0; pos < len(text); {
		loc := p.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		next := visit(loc)
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
}

// Statutes returns only the qualified statute citations of text.
func Statutes(text string) []Reference {
	var out []Reference
	for _, r := range Articles(text) {
		if r.Kind == KindStatute {
			out = append(out, r)
		}
	}
	return out
}

// Cases detects court decision citations.
func Cases(text string) []Reference {
	var refs []Reference
	for _, p := range casePatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			s := collapse(text[loc[0]:loc[1]])
			refs = append(refs, Reference{Kind: KindCase, Surface: s, Ref: s, Offset: loc[0], end: loc[1]})
		}
	}
	sortRefs(refs)
	return dedupeOverlapping(refs)
}

// Reviews detects law-review references.
func Reviews(text string) []Reference {
	var refs []Reference
	for _, p := range reviewPatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			s := collapse(text[loc[0]:loc[1]])
			refs = append(refs, Reference{Kind: KindReview, Surface: s, Ref: s, Offset: loc[0], end: loc[1]})
		}
	}
	sortRefs(refs)
	return refs
}

// Structural detects supra/infra pointers to a part of the same document.
// Ref holds the target numeral ("II", "B", "3").
func Structural(text string) []Reference {
	var refs []Reference
	for _, loc := range structuralPattern.FindAllStringSubmatchIndex(text, -1) {
		refs = append(refs, Reference{
			Kind:    KindStructural,
			Surface: collapse(text[loc[0]:loc[1]]),
			Ref:     text[loc[2]:loc[3]],
			Offset:  loc[0],
			end:     loc[1],
		})
	}
	return refs
}

func articleReference(surface, num, alinea, code string, start, end int) Reference {
	r := Reference{
		Kind:    KindArticle,
		Surface: surface,
		Ref:     ArticleRef(num, alinea),
		Article: num,
		Alinea:  alinea,
		Offset:  start,
		end:     end,
	}
	if code != "" {
		r.Kind = KindStatute
		r.Code = code
		r.Ref += " — " + code
	}
	return r
}

// qualifier extracts the code name from the two optional capture groups of
// the qualifier sub-pattern (long form, abbreviation) and returns where the
// name ends in text, or -1 when there is no qualifier.
func qualifier(text string, groups []int) (string, int) {
	if len(groups) < 4 {
		return "", -1
	}
	if groups[0] >= 0 {
		name := text[groups[0]:groups[1]]
		if loc := nameStop.FindStringIndex(name); loc != nil {
			name = name[:loc[0]]
		}
		name = strings.TrimRight(name, " .'’")
		return collapse(name), groups[0] + len(name)
	}
	if groups[2] >= 0 {
		return text[groups[2]:groups[3]], groups[3]
	}
	return "", -1
}

// nameStop ends a code name at the first conjunction or verb that starts the
// rest of the sentence.
var nameStop = regexp.MustCompile(`\s+(?:et|qui|que|dont|lorsque|car|mais|ou|en|est|sont|a|ont|se|ne|n['’]\S*|s['’]\S*|engage|prévoi\S*|dispos\S*|énonce\S*|précise\S*|stipule\S*|impose\S*|permet\S*|exige\S*|établi\S*|interdi\S*|confère\S*|oblige\S*)(?:\s|$)`)

// reporterContext reports whether the match at [start,end) sits next to a
// law-reporter citation ("[1990] 2 R.C.S. 389") rather than a statute.
func reporterContext(text string, start, end int) bool {
	lo, hi := start-reporterWindow, end+reporterWindow
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	if reporterAcronym.MatchString(text[lo:hi]) {
		return true
	}
	return precededByInitial.MatchString(text[:start])
}

func spans(refs []Reference) [][2]int {
	out := make([][2]int, 0, len(refs))
	for _, r := range refs {
		out = append(out, [2]int{r.Offset, r.end})
	}
	return out
}

func overlaps(taken [][2]int, start, end int) bool {
	for _, s := range taken {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

func dedupeOverlapping(refs []Reference) []Reference {
	var out []Reference
	for _, r := range refs {
		if n := len(out); n > 0 && r.Offset < out[n-1].end {
			if r.end-r.Offset > out[n-1].end-out[n-1].Offset {
				out[n-1] = r
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRefs(refs []Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Offset != refs[j].Offset {
			return refs[i].Offset < refs[j].Offset
		}
		return refs[i].Ref < refs[j].Ref
	})
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
