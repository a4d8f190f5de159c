package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DOCXParser reads word/document.xml in document order. Paragraphs styled
// as headings open a new section; table rows become pipe rows.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	sections, tables, err := parseDocxXML(rc)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	return &ParseResult{Sections: sections, Method: "native", Tables: tables}, nil
}

// docxWalker accumulates sections while streaming WordprocessingML.
type docxWalker struct {
	sections []Section
	tables   []string
	cur      Section
	body     strings.Builder

	para       strings.Builder
	paraStyle  string
	tableDepth int
	cell       strings.Builder
	row        []string
}

func parseDocxXML(r io.Reader) ([]Section, []string, error) {
	dec := xml.NewDecoder(r)
	w := &docxWalker{}
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				w.para.Reset()
				w.paraStyle = ""
			case "pStyle":
				w.paraStyle = attr(t, "val")
			case "t":
				inText = true
			case "tab":
				w.para.WriteString("\t")
			case "br", "cr":
				w.para.WriteString("\n")
			case "tbl":
				w.tableDepth++
			case "tr":
				w.row = w.row[:0]
			case "tc":
				w.cell.Reset()
			}
		case xml.CharData:
			if inText {
				w.para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				w.endParagraph()
			case "tc":
				w.row = append(w.row, strings.TrimSpace(w.cell.String()))
			case "tr":
				if w.tableDepth > 0 && len(w.row) > 0 {
					w.body.WriteString("| " + strings.Join(w.row, " | ") + " |\n")
				}
			case "tbl":
				w.tableDepth--
			}
		}
	}
	w.flush()
	return w.sections, w.tables, nil
}

func (w *docxWalker) endParagraph() {
	text := strings.TrimSpace(w.para.String())
	if text == "" {
		return
	}
	if w.tableDepth > 0 {
		if w.cell.Len() > 0 {
			w.cell.WriteString(" ")
		}
		w.cell.WriteString(text)
		return
	}
	if level, ok := headingStyleLevel(w.paraStyle); ok {
		w.flush()
		w.cur = Section{Heading: text, Level: level, Type: "section"}
		if tableCaptionRe.MatchString(text) {
			w.tables = append(w.tables, text)
		}
		return
	}
	w.body.WriteString(text + "\n")
}

func (w *docxWalker) flush() {
	w.cur.Content = strings.TrimSpace(w.body.String())
	if w.cur.Heading != "" || w.cur.Content != "" {
		if w.cur.Type == "" {
			w.cur.Type = "section"
		}
		w.sections = append(w.sections, w.cur)
	}
	w.cur = Section{}
	w.body.Reset()
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingStyleLevel maps "Heading2", "Titre1" or "Title" styles to a level.
func headingStyleLevel(style string) (int, bool) {
	lower := strings.ToLower(style)
	switch {
	case lower == "title" || lower == "titre":
		return 1, true
	case strings.HasPrefix(lower, "heading"), strings.HasPrefix(lower, "titre"):
		for i := 1; i <= 9; i++ {
			if strings.HasSuffix(lower, fmt.Sprint(i)) {
				return i, true
			}
		}
		return 1, true
	}
	return 0, false
}
