// Package parser extracts plain text from uploaded files. Structure is left
// to the segmenters; parsers only keep page and sheet boundaries and undo
// extraction artifacts.
package parser

import (
	"context"
	"strings"
)

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section        // pages, sheets or heading blocks, in order
	Method   string           // "native"
	Tables   []string         // detected table captions
	Metadata map[string]string
}

// Section is one page, sheet or heading block of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int
	PageNumber int
	Type       string // "page", "table", "section"
	Metadata   map[string]string
}

// Text joins the sections into the document text handed to the pipeline.
// Headings are kept on their own line so that segmenters can see them.
func (r *ParseResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		var b strings.Builder
		if s.Heading != "" && s.Type != "table" {
			b.WriteString(s.Heading)
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimRight(s.Content, "\n"))
		if t := strings.TrimSpace(b.String()); t != "" {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "\n")
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
