package graph

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/lexgraph/segment"
)

// ArticleIndex maps an article number ("12", "12.3", "12-2") to the id of the
// segment carrying it. It is derived from a document's segments and rebuilt
// whenever they change.
type ArticleIndex map[string]string

// BuildArticleIndex indexes every segment that carries an article number. The
// first segment wins when a number repeats.
func BuildArticleIndex(segs []segment.Segment) ArticleIndex {
	idx := make(ArticleIndex)
	for _, s := range segs {
		n := s.Meta.ArticleNumber
		if n == "" {
			continue
		}
		if _, ok := idx[n]; !ok {
			idx[n] = s.ID
		}
	}
	return idx
}

type articleNumber struct {
	parts []int
	split int // part suffix of "12-2"; 1 when absent
}

func parseArticleNumber(s string) articleNumber {
	n := articleNumber{split: 1}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if v, err := strconv.Atoi(s[i+1:]); err == nil {
			n.split = v
		}
		s = s[:i]
	}
	for _, p := range strings.Split(s, ".") {
		v, _ := strconv.Atoi(p)
		n.parts = append(n.parts, v)
	}
	return n
}

// baseNumber strips the split suffix: "7-2" → "7".
func baseNumber(n string) string {
	if i := strings.IndexByte(n, '-'); i >= 0 {
		return n[:i]
	}
	return n
}

// CompareArticleNumbers orders article numbers component by component,
// numerically: "7" < "7.1" < "8" and "12.3" < "12.10". A "-n" split suffix
// orders the parts of one article after the article itself and before its
// dotted sub-articles.
func CompareArticleNumbers(a, b string) int {
	pa, pb := parseArticleNumber(a), parseArticleNumber(b)
	n := len(pa.parts)
	if len(pb.parts) > n {
		n = len(pb.parts)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa.parts) {
			x = pa.parts[i]
		}
		if i < len(pb.parts) {
			y = pb.parts[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case pa.split < pb.split:
		return -1
	case pa.split > pb.split:
		return 1
	}
	return 0
}

var (
	articleRefPattern = regexp.MustCompile(`(?i)art\.(\d+(?:\.\d+)*)`)
	rangeRefPattern   = regexp.MustCompile(`(?i)art\.(\d+(?:\.\d+)*)\s*[–\-]\s*art\.(\d+(?:\.\d+)*)`)
)

// ParseArticleRef extracts the article number of a normalized reference:
// "art.20.al.3" → "20", "art.1457 — Code civil" → "1457".
func ParseArticleRef(ref string) (string, bool) {
	m := articleRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseRangeRef extracts the bounds of a range reference "art.5–art.7.1".
func ParseRangeRef(ref string) (from, to string, ok bool) {
	m := rangeRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ResolveRange returns the ids of the indexed articles within [from, to],
// inclusive, in article order. An upper bound without a split suffix covers
// every part of that article: "5 à 7" includes "7-2".
func ResolveRange(idx ArticleIndex, from, to string) []string {
	nums := make([]string, 0, len(idx))
	for n := range idx {
		upper := n
		if !strings.Contains(to, "-") {
			upper = baseNumber(n)
		}
		if CompareArticleNumbers(n, from) >= 0 && CompareArticleNumbers(upper, to) <= 0 {
			nums = append(nums, n)
		}
	}
	sort.Slice(nums, func(i, j int) bool { return CompareArticleNumbers(nums[i], nums[j]) < 0 })

	ids := make([]string, len(nums))
	for i, n := range nums {
		ids[i] = idx[n]
	}
	return ids
}
