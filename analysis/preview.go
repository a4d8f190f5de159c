package analysis

import (
	"unicode/utf8"

	"github.com/brunobiangulo/lexgraph/classify"
)

// Preview bounds.
const (
	DefaultPreviewChars = 50_000
	MinPreviewChars     = 1_000
	MaxPreviewChars     = 200_000
)

// ClampPreviewChars maps a requested preview size onto the accepted range;
// zero or negative selects the default.
func ClampPreviewChars(n int) int {
	switch {
	case n <= 0:
		return DefaultPreviewChars
	case n < MinPreviewChars:
		return MinPreviewChars
	case n > MaxPreviewChars:
		return MaxPreviewChars
	}
	return n
}

// Preview analyzes the first maxChars runes of text without persisting
// anything.
func (p *Pipeline) Preview(documentID, title, text string, maxChars int) *Result {
	return p.Segment(documentID, title, truncatePreview(text, maxChars))
}

// PreviewAs is Preview for a document whose family is already known. An
// invalid family is classified from the truncated text.
func (p *Pipeline) PreviewAs(family classify.Family, documentID, title, text string, maxChars int) *Result {
	text = truncatePreview(text, maxChars)
	if !family.Valid() {
		return p.Segment(documentID, title, text)
	}
	return p.SegmentAs(family, documentID, title, text)
}

func truncatePreview(text string, maxChars int) string {
	maxChars = ClampPreviewChars(maxChars)
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
