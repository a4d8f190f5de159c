package segment

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/lexgraph/cite"
)

var (
	capitalPhrase = regexp.MustCompile(`\p{Lu}[\p{L}'’\-]+(?:\s+(?:(?:de|du|des|la|le|les|et|pour|sur|d['’]|l['’])\s*)*\p{Lu}[\p{L}'’\-]+)+`)
	acronym       = regexp.MustCompile(`\b[A-Z]{2,8}\b`)
	leadingWord   = regexp.MustCompile(`^(?:Le|La|Les|L['’]|Un|Une|Des|Ce|Cette|Ces|Au|Aux|En|Par|Pour|Dans|Selon|Sur|Si|Lors)\s*`)
)

// extractEntityNames returns candidate organisation names in order of first
// appearance: multi-word capitalized phrases, plus single words and acronyms
// the resolver knows.
func extractEntityNames(text string, resolver EntityResolver) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		k := strings.ToLower(n)
		if n == "" || seen[k] {
			return
		}
		seen[k] = true
		names = append(names, n)
	}

	for _, m := range capitalPhrase.FindAllString(text, -1) {
		n := strings.TrimSpace(leadingWord.ReplaceAllString(m, ""))
		if len(strings.Fields(n)) >= 2 {
			add(n)
			continue
		}
		if resolver != nil {
			if _, ok := resolver.Lookup(n); ok {
				add(n)
			}
		}
	}
	if resolver != nil {
		for _, m := range acronym.FindAllString(text, -1) {
			if _, ok := resolver.Lookup(m); ok {
				add(m)
			}
		}
	}
	return names
}

func resolveEntities(text string, resolver EntityResolver) []Entity {
	names := extractEntityNames(text, resolver)
	if len(names) == 0 {
		return nil
	}
	if resolver == nil {
		out := make([]Entity, len(names))
		for i, n := range names {
			out[i] = Entity{Name: n}
		}
		return out
	}
	return resolver.Resolve(names)
}

type keyword struct {
	label   string
	pattern *regexp.Regexp
}

var irregularityKeywords = []keyword{
	{"irrégularité", regexp.MustCompile(`(?i)irrégularit`)},
	{"fraude", regexp.MustCompile(`(?i)\bfraud`)},
	{"détournement", regexp.MustCompile(`(?i)détournements?`)},
	{"conflit d'intérêts", regexp.MustCompile(`(?i)conflits?\s+d['’]intérêts?`)},
	{"surfacturation", regexp.MustCompile(`(?i)surfacturation`)},
	{"favoritisme", regexp.MustCompile(`(?i)favoritisme`)},
	{"non-conformité", regexp.MustCompile(`(?i)non[-\s]conformit`)},
	{"double paiement", regexp.MustCompile(`(?i)doubles?\s+paiements?|paiements?\s+en\s+double`)},
	{"fractionnement", regexp.MustCompile(`(?i)fractionnement`)},
	{"dépassement budgétaire", regexp.MustCompile(`(?i)dépassements?\s+(?:budgétaires?|de\s+crédits)`)},
	{"absence de mise en concurrence", regexp.MustCompile(`(?i)absence\s+de\s+(?:mise\s+en\s+)?concurrence`)},
	{"manquement", regexp.MustCompile(`(?i)manquements?`)},
}

func irregularities(text string) []string {
	var out []string
	for _, k := range irregularityKeywords {
		if k.pattern.MatchString(text) {
			out = append(out, k.label)
		}
	}
	return out
}

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:millions?|milliards?|M|Md)\s*(?:d['’]euros|€|de\s+dollars|\$)`),
		regexp.MustCompile(`(?i)\b\d{1,3}(?:[ .,\x{202F}]\d{3})*(?:[.,]\d{1,2})?\s*(?:€|EUR\b|euros?\b|USD\b|\$|F\s?CFA\b|MAD\b|DH\b|dirhams?\b|dollars?\b)`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}(?:er)?\s+(?:janvier|février|mars|avril|mai|juin|juillet|août|septembre|octobre|novembre|décembre)\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	}
	procurementPattern = regexp.MustCompile(`(?i)\b(?:marché|contrat|appel\s+d['’]offres|bon\s+de\s+commande|convention)\s+(?:public\s+)?n\s*[°o]\.?\s*[A-Z0-9][A-Z0-9/\-.]*[A-Z0-9]`)
)

// matchAll runs every pattern and returns the whitespace-normalized matches,
// deduplicated, in pattern order. Matches nested inside an earlier pattern's
// match are skipped.
func matchAll(text string, patterns ...*regexp.Regexp) []string {
	var out []string
	var taken [][2]int
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			inside := false
			for _, t := range taken {
				if loc[0] >= t[0] && loc[1] <= t[1] {
					inside = true
					break
				}
			}
			if inside {
				continue
			}
			taken = append(taken, [2]int{loc[0], loc[1]})
			s := CollapseSpace(text[loc[0]:loc[1]])
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func statutesCited(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range cite.Statutes(text) {
		if !seen[r.Ref] {
			seen[r.Ref] = true
			out = append(out, r.Ref)
		}
	}
	return out
}

var followUpStates = []keyword{
	{"not_implemented", regexp.MustCompile(`(?i)\bnon\s+mise\s+en\s+(?:œ|oe)uvre|\bnot\s+implemented`)},
	{"partially_implemented", regexp.MustCompile(`(?i)partiellement\s+mise\s+en\s+(?:œ|oe)uvre|partially\s+implemented`)},
	{"in_progress", regexp.MustCompile(`(?i)\ben\s+cours\s+de\s+mise\s+en\s+(?:œ|oe)uvre|\bin\s+progress`)},
	{"implemented", regexp.MustCompile(`(?i)(?:totalement|entièrement)\s+mise\s+en\s+(?:œ|oe)uvre|mise\s+en\s+(?:œ|oe)uvre\s*:\s*oui|\bfully\s+implemented`)},
}

func followUp(text string) string {
	for _, k := range followUpStates {
		if k.pattern.MatchString(text) {
			return k.label
		}
	}
	return ""
}

// enrich fills the report metadata extracted from the segment text.
func enrich(s *Segment, resolver EntityResolver) {
	s.Meta.Entities = resolveEntities(s.Text, resolver)
	s.Meta.Irregularities = irregularities(s.Text)
	s.Meta.Amounts = matchAll(s.Text, amountPatterns...)
	s.Meta.Dates = matchAll(s.Text, datePatterns...)
	s.Meta.ProcurementRefs = matchAll(s.Text, procurementPattern)
	s.Meta.StatutesCited = statutesCited(s.Text)
	if s.Role == RoleRecommendation {
		s.Meta.FollowUp = followUp(s.Text)
	}
}
