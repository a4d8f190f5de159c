package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// queryWords splits a query into lowercase words, dropping punctuation and
// FTS5 operators. Apostrophes split elisions ("l'article" gives "l",
// "article").
func queryWords(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// sanitizeFTSQuery builds an FTS5 OR query from the input: the full phrase
// plus every significant word, each quoted so that no user text is read as
// FTS5 syntax. It returns "" when nothing is searchable.
func sanitizeFTSQuery(query string) string {
	words := queryWords(query)
	if len(words) == 0 {
		return ""
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, `"`+strings.Join(words, " ")+`"`)
	}
	seen := make(map[string]bool)
	for _, w := range words {
		if seen[w] || isStopWord(w) || (utf8.RuneCountInString(w) <= 2 && !isNumber(w)) {
			continue
		}
		seen[w] = true
		parts = append(parts, `"`+w+`"`)
	}
	if len(parts) == 0 {
		return `"` + strings.Join(words, " ") + `"`
	}
	return strings.Join(parts, " OR ")
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var stopWords = map[string]bool{
	// French
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"du": true, "de": true, "et": true, "ou": true, "en": true, "au": true,
	"aux": true, "ce": true, "ces": true, "cet": true, "cette": true, "qui": true,
	"que": true, "quoi": true, "quel": true, "quelle": true, "quels": true,
	"quelles": true, "dans": true, "par": true, "pour": true, "sur": true,
	"avec": true, "sans": true, "sous": true, "est": true, "sont": true,
	"été": true, "être": true, "avoir": true, "fait": true, "faire": true,
	"comment": true, "pourquoi": true, "quand": true, "selon": true, "leur": true,
	"leurs": true, "son": true, "sa": true, "ses": true, "il": true, "elle": true,
	"ils": true, "elles": true, "nous": true, "vous": true, "on": true,
	"ne": true, "pas": true, "plus": true, "dont": true, "entre": true,
	// English
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "with": true, "what": true, "which": true,
	"how": true, "why": true, "is": true, "are": true, "does": true,
}

func isStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
