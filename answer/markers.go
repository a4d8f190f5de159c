package answer

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	markerRe      = regexp.MustCompile(`【(\d+)】`)
	blockMarkerRe = regexp.MustCompile(`(?m)^【(\d+)】`)

	// Phrases that signal an answer drawn from outside the context.
	externalKnowledge = []string{
		"à ma connaissance",
		"de manière générale",
		"en règle générale",
		"il est bien connu",
		"based on my knowledge",
		"it is commonly known",
	}
)

// ContextMarkers returns the block numbers of a rendered context, in order.
func ContextMarkers(contextText string) []int {
	return uniqueNumbers(blockMarkerRe.FindAllStringSubmatch(contextText, -1))
}

// CitedMarkers returns the distinct 【n】 numbers of text in first-use order.
func CitedMarkers(text string) []int {
	return uniqueNumbers(markerRe.FindAllStringSubmatch(text, -1))
}

func uniqueNumbers(matches [][]string) []int {
	out := []int{}
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// sourcesLine renders "Sources : 【1】, 【2】".
func sourcesLine(markers []int) string {
	parts := make([]string, len(markers))
	for i, n := range markers {
		parts[i] = fmt.Sprintf("【%d】", n)
	}
	return "Sources : " + strings.Join(parts, ", ")
}

type validationResult struct {
	cited   []int
	valid   []int
	invalid []int
	issues  []string
}

// validate checks the markers of an answer against the context blocks.
func validate(text string, available []int) *validationResult {
	v := &validationResult{cited: CitedMarkers(text), valid: []int{}}
	for _, n := range v.cited {
		if slices.Contains(available, n) {
			v.valid = append(v.valid, n)
		} else {
			v.invalid = append(v.invalid, n)
		}
	}

	if len(v.cited) == 0 && !isNotCovered(text) {
		v.issues = append(v.issues, "answer cites no context block")
	}
	for _, n := range v.invalid {
		v.issues = append(v.issues, fmt.Sprintf("marker 【%d】 matches no context block", n))
	}
	lower := strings.ToLower(text)
	for _, p := range externalKnowledge {
		if strings.Contains(lower, p) {
			v.issues = append(v.issues, "answer appears to rely on knowledge outside the context")
			break
		}
	}
	return v
}

// confidence starts at 1 and loses 0.15 per issue.
func (v *validationResult) confidence() float64 {
	return max(0, 1.0-0.15*float64(len(v.issues)))
}
