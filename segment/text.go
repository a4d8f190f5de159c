package segment

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var normalizer = strings.NewReplacer(
	"\r\n", "\n",
	"\u00a0", " ",
	"\u2011", "-",
	"\t", " ",
)

// Normalize applies the cleanup every segmenter expects: LF line endings,
// plain spaces for NBSP and tabs, ASCII hyphens for non-breaking hyphens.
func Normalize(text string) string {
	return strings.TrimSpace(normalizer.Replace(text))
}

var spaceRun = regexp.MustCompile(`\s+`)

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// EstimateTokens approximates the token count (~1.3 tokens per word).
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

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

func upper(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "_", " "))
}

// block accumulates body lines for a segment under construction.
type block struct {
	heading string
	lines   []string
}

func (b *block) add(line string) { b.lines = append(b.lines, line) }

func (b *block) text() string { return strings.TrimSpace(strings.Join(b.lines, "\n")) }

func (b *block) empty() bool { return b.text() == "" }
