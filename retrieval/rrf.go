package retrieval

import (
	"sort"

	"github.com/brunobiangulo/lexgraph/store"
)

const rrfK = 60

// FusedResultInfo holds per-result method contribution metadata.
type FusedResultInfo struct {
	Methods []string `json:"methods"`
	VecRank int      `json:"vec_rank,omitempty"` // 1-based, 0 = not present
	FTSRank int      `json:"fts_rank,omitempty"` // 1-based, 0 = not present
}

// fuseRRF combines the vector and full-text rankings with weighted
// Reciprocal Rank Fusion: score = sum(weight_i / (k + rank_i)). Ties keep
// the vector ranking's order. It also returns per-result contribution info
// keyed by segment rowid.
func fuseRRF(vecResults, ftsResults []store.SearchHit, weightVec, weightFTS float64, maxResults int) ([]store.SearchHit, map[int64]FusedResultInfo) {
	type fusedEntry struct {
		hit   store.SearchHit
		score float64
		order int
		info  FusedResultInfo
	}

	fused := make(map[int64]*fusedEntry)
	entry := func(h store.SearchHit) *fusedEntry {
		e, ok := fused[h.RowID]
		if !ok {
			e = &fusedEntry{hit: h, order: len(fused)}
			fused[h.RowID] = e
		}
		return e
	}

	for rank, h := range vecResults {
		e := entry(h)
		e.score += weightVec / float64(rrfK+rank+1)
		e.info.Methods = append(e.info.Methods, "vector")
		e.info.VecRank = rank + 1
	}
	for rank, h := range ftsResults {
		e := entry(h)
		e.score += weightFTS / float64(rrfK+rank+1)
		e.info.Methods = append(e.info.Methods, "fts")
		e.info.FTSRank = rank + 1
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	results := make([]store.SearchHit, len(entries))
	infoMap := make(map[int64]FusedResultInfo, len(entries))
	for i, e := range entries {
		results[i] = e.hit
		results[i].Score = e.score
		infoMap[e.hit.RowID] = e.info
	}
	return results, infoMap
}
