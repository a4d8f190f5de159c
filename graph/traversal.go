package graph

// Hop is a segment reached during expansion.
type Hop struct {
	ID    string
	Why   string
	Depth int
}

// Graph is the in-memory adjacency of one document's edges.
type Graph struct {
	out   map[string][]Edge
	in    map[string][]Edge
	index ArticleIndex
}

// NewGraph indexes edges by source and by resolved target. index resolves
// references whose To is empty and article ranges, for both directions.
func NewGraph(edges []Edge, index ArticleIndex) *Graph {
	g := &Graph{
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
		index: index,
	}
	for _, e := range edges {
		g.out[e.From] = append(g.out[e.From], e)
		if IsDocumentKey(e.From) {
			continue
		}
		for _, to := range g.targets(e) {
			if to != e.From {
				g.in[to] = append(g.in[to], e)
			}
		}
	}
	return g
}

// targets resolves the segments an edge points at. Only refersTo edges carry
// a resolved To; refersTo and refersToRange edges are also resolved through
// the article index.
func (g *Graph) targets(e Edge) []string {
	switch e.Type {
	case RelRefersTo:
		if e.To != "" {
			return []string{e.To}
		}
		if num, ok := ParseArticleRef(e.ToRef); ok {
			if to, ok := g.index[num]; ok {
				return []string{to}
			}
		}
	case RelRefersToRange:
		if from, to, ok := ParseRangeRef(e.ToRef); ok {
			return ResolveRange(g.index, from, to)
		}
	default:
		if e.To != "" {
			return []string{e.To}
		}
	}
	return nil
}

// Neighbors returns the segments one hop from id: targets of its refersTo and
// refersToRange edges, then the sources of edges pointing at it. Citation
// edges are never followed.
func (g *Graph) Neighbors(id string) []Hop {
	var hops []Hop
	for _, e := range g.out[id] {
		switch e.Type {
		case RelRefersTo:
			if e.To != "" {
				hops = append(hops, Hop{ID: e.To, Why: "edge:refersTo"})
				continue
			}
			if num, ok := ParseArticleRef(e.ToRef); ok {
				if to, ok := g.index[num]; ok {
					hops = append(hops, Hop{ID: to, Why: "edge:refersTo(to_ref)"})
				}
			}
		case RelRefersToRange:
			if from, to, ok := ParseRangeRef(e.ToRef); ok {
				for _, sid := range ResolveRange(g.index, from, to) {
					hops = append(hops, Hop{ID: sid, Why: "edge:refersToRange"})
				}
			}
		}
	}
	for _, e := range g.in[id] {
		hops = append(hops, Hop{ID: e.From, Why: "edge:incoming"})
	}
	return hops
}

// Expand walks the graph breadth-first from seeds up to maxDepth hops and
// returns every newly reached segment in visit order. Seeds themselves are
// not returned.
func (g *Graph) Expand(seeds []string, maxDepth int) []Hop {
	if len(seeds) == 0 || maxDepth <= 0 {
		return nil
	}

	visited := make(map[string]bool, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}

	var reached []Hop
	for depth := 1; depth <= maxDepth && len(queue) > 0; depth++ {
		var next []string
		for _, id := range queue {
			for _, h := range g.Neighbors(id) {
				if visited[h.ID] {
					continue
				}
				visited[h.ID] = true
				h.Depth = depth
				reached = append(reached, h)
				next = append(next, h.ID)
			}
		}
		queue = next
	}
	return reached
}
