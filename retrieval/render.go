package retrieval

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/lexgraph/graph"
)

// blockSeparator sits between rendered context blocks.
var blockSeparator = "\n\n" + strings.Repeat("-", 60) + "\n\n"

// contextBlock is one segment as handed to the answer composer.
type contextBlock struct {
	ID          string
	Title       string
	SectionPath string
	Role        string
	Text        string
	Citations   []graph.Edge
}

// renderContext numbers blocks from 1 and joins them. Each block opens with
// "【i】 title — path (id)"; the path falls back to the uppercased role.
func renderContext(blocks []contextBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = renderBlock(i+1, b)
	}
	return strings.Join(parts, blockSeparator)
}

func renderBlock(n int, b contextBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "【%d】", n)
	if b.Title != "" {
		sb.WriteString(b.Title + " — ")
	}
	switch {
	case b.SectionPath != "":
		sb.WriteString(b.SectionPath)
	case b.Role != "":
		sb.WriteString(strings.ToUpper(b.Role))
	default:
		sb.WriteString("SEGMENT")
	}
	fmt.Fprintf(&sb, " (%s)\n%s", b.ID, strings.TrimSpace(b.Text))
	sb.WriteString(renderCitations(b.Citations))
	return sb.String()
}

func renderCitations(edges []graph.Edge) string {
	var lines []string
	for _, e := range edges {
		var kind string
		switch e.Type {
		case graph.RelCitesCase:
			kind = "Cause"
		case graph.RelCitesStatute:
			kind = "Disposition"
		default:
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", kind, strings.Join(strings.Fields(e.Surface), " "), e.ToRef))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\nCitations détectées:\n" + strings.Join(lines, "\n")
}

// citationsFrom returns the citation edges whose source is segmentID.
func citationsFrom(edges []graph.Edge, segmentID string) []graph.Edge {
	var out []graph.Edge
	for _, e := range edges {
		if e.From == segmentID && e.Citation() {
			out = append(out, e)
		}
	}
	return out
}
