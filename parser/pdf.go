package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts page text with ledongthuc/pdf and removes running
// headers and footers, line-break hyphenation and glued footnote anchors.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]string, 0, totalPages)
	numbers := make([]int, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("parser: skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
		numbers = append(numbers, i)
	}

	pages = cleanPages(pages)
	sections := make([]Section, 0, len(pages))
	for i, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, Section{Content: text, PageNumber: numbers[i], Type: "page"})
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Tables:   detectTables(pages),
		Metadata: map[string]string{"pages": fmt.Sprint(totalPages)},
	}, nil
}

var (
	hyphenBreakRe    = regexp.MustCompile(`-\n[ \t]*`)
	footnoteAnchorRe = regexp.MustCompile(`[ \t]*(\[\d+\]|\^\d+)`)
	tableCaptionRe   = regexp.MustCompile(`(?i)\b(?:table|tableau)\s+\d+`)
)

// cleanPages drops repeated first and last lines, joins hyphenated line
// breaks and spaces out footnote anchors.
func cleanPages(pages []string) []string {
	pages = stripRunningLines(pages)
	out := make([]string, len(pages))
	for i, p := range pages {
		p = hyphenBreakRe.ReplaceAllString(p, "-")
		out[i] = footnoteAnchorRe.ReplaceAllString(p, " $1")
	}
	return out
}

// stripRunningLines removes the first (or last) non-blank line of every page
// when that same line opens (or closes) at least max(2, 60%) of the pages.
func stripRunningLines(pages []string) []string {
	threshold := max(2, len(pages)*6/10)
	headers := make(map[string]int)
	footers := make(map[string]int)
	for _, p := range pages {
		first, last := edgeLines(p)
		if first != "" {
			headers[first]++
		}
		if last != "" {
			footers[last]++
		}
	}

	out := make([]string, len(pages))
	for i, p := range pages {
		lines := strings.Split(p, "\n")
		start, end := 0, len(lines)
		for start < end && strings.TrimSpace(lines[start]) == "" {
			start++
		}
		for end > start && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		if start < end && headers[strings.TrimSpace(lines[start])] >= threshold {
			start++
		}
		if start < end && footers[strings.TrimSpace(lines[end-1])] >= threshold {
			end--
		}
		out[i] = strings.Join(lines[start:end], "\n")
	}
	return out
}

func edgeLines(page string) (first, last string) {
	for _, l := range strings.Split(page, "\n") {
		if l = strings.TrimSpace(l); l == "" {
			continue
		}
		if first == "" {
			first = l
		}
		last = l
	}
	return first, last
}

func detectTables(pages []string) []string {
	var captions []string
	for _, p := range pages {
		for _, line := range strings.Split(p, "\n") {
			if tableCaptionRe.MatchString(line) {
				captions = append(captions, strings.TrimSpace(line))
			}
		}
	}
	return captions
}
