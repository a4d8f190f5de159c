package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	for _, format := range []string{"pdf", "txt", "md", "docx", "xlsx", "xlsm", "PDF"} {
		t.Run(format, func(t *testing.T) {
			p, err := reg.Get(format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", format, err)
			}
			if !containsString(p.SupportedFormats(), strings.ToLower(format)) {
				t.Errorf("parser for %q does not list it in SupportedFormats(): %v", format, p.SupportedFormats())
			}
		})
	}
	assert.Equal(t, []string{"docx", "md", "pdf", "txt", "xlsm", "xlsx"}, reg.Formats())
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, format := range []string{"pptx", "doc", "json", ""} {
		p, err := reg.Get(format)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Get(%q) err = %v, want ErrUnsupportedFormat", format, err)
		}
		if p != nil {
			t.Errorf("Get(%q) returned a parser", format)
		}
	}
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("rtf")
	require.Error(t, err)

	reg.Register("RTF", &TextParser{})
	p, err := reg.Get("rtf")
	require.NoError(t, err)
	assert.IsType(t, &TextParser{}, p)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "pdf", FormatOf("/tmp/Jugement.PDF"))
	assert.Equal(t, "txt", FormatOf("loi.txt"))
	assert.Equal(t, "", FormatOf("README"))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// PDF cleanup
// ---------------------------------------------------------------------------

func TestStripRunningLines(t *testing.T) {
	pages := []string{
		"COUR SUPÉRIEURE\nFaits\nLe demandeur...\nConfidentiel",
		"\nCOUR SUPÉRIEURE\nMotifs\nLa cour...\nConfidentiel\n",
		"COUR SUPÉRIEURE\nDispositif\nAccueille.\nPage 3",
	}
	got := stripRunningLines(pages)

	want := []string{
		"Faits\nLe demandeur...",
		"Motifs\nLa cour...",
		"Dispositif\nAccueille.\nPage 3",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestStripRunningLinesSinglePage(t *testing.T) {
	// One page can never reach the two-page minimum.
	got := stripRunningLines([]string{"TITRE\nCorps\nFin"})
	assert.Equal(t, []string{"TITRE\nCorps\nFin"}, got)
}

func TestCleanPages(t *testing.T) {
	got := cleanPages([]string{"la responsa-\n  bilité civile[12] et^3 suite"})
	assert.Equal(t, []string{"la responsa-bilité civile [12] et ^3 suite"}, got)

	// Parenthesized numbers stay attached to article references.
	got = cleanPages([]string{"art. 5(1) du Code"})
	assert.Equal(t, []string{"art. 5(1) du Code"}, got)
}

func TestDetectTables(t *testing.T) {
	got := detectTables([]string{"Intro\nTableau 2 - Dépenses\nsuite", "Table 10: Costs\nno table here"})
	assert.Equal(t, []string{"Tableau 2 - Dépenses", "Table 10: Costs"}, got)
}

// ---------------------------------------------------------------------------
// Text, DOCX and XLSX parsers
// ---------------------------------------------------------------------------

func TestTextParser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loi.txt")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffArticle 1\nFoo."), 0o644))

	res, err := (&TextParser{}).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Article 1\nFoo.", res.Text())

	empty := filepath.Join(dir, "vide.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	res, err = (&TextParser{}).Parse(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
	assert.Equal(t, "", res.Text())

	_, err = (&TextParser{}).Parse(context.Background(), filepath.Join(dir, "absent.txt"))
	assert.Error(t, err)
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Titre1"/></w:pPr><w:r><w:t>Faits</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Le demandeur </w:t></w:r><w:r><w:t>réclame.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Poste</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Montant</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Frais</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>100</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Motifs</w:t></w:r></w:p>
<w:p><w:r><w:t>La cour</w:t></w:r><w:r><w:br/><w:t>considère.</w:t></w:r></w:p>
</w:body>
</w:document>`

func writeDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jugement.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDOCXParserKeepsDocumentOrder(t *testing.T) {
	res, err := (&DOCXParser{}).Parse(context.Background(), writeDocx(t, docxBody))
	require.NoError(t, err)

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "Faits", res.Sections[0].Heading)
	assert.Equal(t, 1, res.Sections[0].Level)
	assert.Equal(t, "Le demandeur réclame.\n| Poste | Montant |\n| Frais | 100 |", res.Sections[0].Content)
	assert.Equal(t, "Motifs", res.Sections[1].Heading)
	assert.Equal(t, 2, res.Sections[1].Level)
	assert.Equal(t, "La cour\nconsidère.", res.Sections[1].Content)

	assert.Equal(t, "Faits\nLe demandeur réclame.\n| Poste | Montant |\n| Frais | 100 |\nMotifs\nLa cour\nconsidère.", res.Text())
}

func TestDOCXParserMissingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = (&DOCXParser{}).Parse(context.Background(), path)
	assert.ErrorContains(t, err, "word/document.xml not found")
}

func TestHeadingStyleLevel(t *testing.T) {
	tests := []struct {
		style string
		level int
		ok    bool
	}{
		{"Heading1", 1, true},
		{"Heading3", 3, true},
		{"Titre2", 2, true},
		{"Title", 1, true},
		{"Normal", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		level, ok := headingStyleLevel(tt.style)
		if level != tt.level || ok != tt.ok {
			t.Errorf("headingStyleLevel(%q) = %d, %v; want %d, %v", tt.style, level, ok, tt.level, tt.ok)
		}
	}
}

func TestXLSXParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annexe.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Entité"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Montant"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Ministère"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1200))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := (&XLSXParser{}).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "table", res.Sections[0].Type)
	assert.Equal(t, "2", res.Sections[0].Metadata["row_count"])
	assert.Equal(t, "Sheet1\n| Entité | Montant |\n| Ministère | 1200 |", res.Text())
	assert.Equal(t, []string{"Sheet1"}, res.Tables)
}

func TestParseResultTextNil(t *testing.T) {
	var r *ParseResult
	assert.Equal(t, "", r.Text())
}
