package lexgraph

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// snippetMaxLen is the approximate maximum character length for a snippet.
const snippetMaxLen = 300

// extractSnippet returns the sentence of content sharing the most words
// with answerWords, joined with its better-scoring neighbour when both fit
// in snippetMaxLen. It returns "" when no sentence shares a word.
func extractSnippet(content string, answerWords map[string]bool) string {
	if len(answerWords) == 0 || content == "" {
		return ""
	}
	sentences := snippetSplitSentences(content)
	scores := make([]int, len(sentences))
	best := -1
	for i, sent := range sentences {
		for w := range significantWords(sent) {
			if answerWords[w] {
				scores[i]++
			}
		}
		if scores[i] > 0 && (best < 0 || scores[i] > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}

	result := sentences[best]
	// Neighbour with the higher score; the following sentence wins ties.
	next := -1
	for _, j := range []int{best + 1, best - 1} {
		if j >= 0 && j < len(sentences) && scores[j] > 0 && (next < 0 || scores[j] > scores[next]) {
			next = j
		}
	}
	if next >= 0 {
		combined := result + " " + sentences[next]
		if next < best {
			combined = sentences[next] + " " + result
		}
		if utf8.RuneCountInString(combined) <= snippetMaxLen {
			result = combined
		}
	}
	return truncateSnippet(result)
}

func truncateSnippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetMaxLen {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:snippetMaxLen])) + "…"
}

// significantWords returns the set of lowercased words of four letters or
// more, excluding stop words. Marker digits are dropped with the brackets.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) >= 4 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// snippetSplitSentences splits text after '.', '?', '!' or ';' when the
// next rune is a space, a tab, a newline or the end of the text.
// Abbreviations such as "art." also split; a snippet is a hint, not a
// quotation.
func snippetSplitSentences(text string) []string {
	var sentences []string
	flush := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(".?!;", r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end == len(text) || strings.ContainsRune(" \n\t", rune(text[end])) {
			flush(text[start:end])
			start = end
		}
	}
	flush(text[start:])
	return sentences
}

// stopWords holds French function words of four letters or more.
var stopWords = map[string]bool{
	"dans": true, "pour": true, "avec": true, "sont": true,
	"cette": true, "elle": true, "elles": true, "leur": true,
	"leurs": true, "nous": true, "vous": true, "mais": true,
	"donc": true, "ainsi": true, "comme": true, "entre": true,
	"sans": true, "sous": true, "selon": true, "lors": true,
	"aussi": true, "peut": true, "doit": true, "être": true,
	"avoir": true, "fait": true, "toute": true, "tous": true,
	"toutes": true, "tout": true, "autre": true, "autres": true,
	"même": true, "dont": true, "était": true, "sera": true,
	"celle": true, "celui": true, "ceux": true,
	"quel": true, "quelle": true, "lorsque": true, "puis": true,
	"avant": true, "après": true, "depuis": true, "encore": true,
	"très": true, "plus": true, "moins": true, "sources": true,
}
