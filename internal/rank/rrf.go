package rank

import "sort"

// fuseRRF implements Reciprocal Rank Fusion over two rank lists (BM25 and
// TF-IDF), per §4.5 step 5: score(d) = Σ 1/(k + rank_i(d)). Unlike the
// teacher's three-way weighted fuseRRF, weights here are implicitly 1 for
// both methods — the spec gives no per-method weighting for this engine.
func fuseRRF(bm25Ranked, tfidfRanked []string, k int) []string {
	type fusedEntry struct {
		id    string
		score float64
		order int // first-seen position, for stable tie-breaking
	}

	fused := map[string]*fusedEntry{}
	var order []string
	pos := func(id string) *fusedEntry {
		e, ok := fused[id]
		if !ok {
			e = &fusedEntry{id: id, order: len(order)}
			fused[id] = e
			order = append(order, id)
		}
		return e
	}

	for rank, id := range bm25Ranked {
		pos(id).score += 1.0 / float64(k+rank+1)
	}
	for rank, id := range tfidfRanked {
		pos(id).score += 1.0 / float64(k+rank+1)
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, id := range order {
		entries = append(entries, fused[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// rrfScore returns the raw fused RRF score (before reranking) for id given
// its position in each rank list, used to compute the overall confidence
// value (§4.5 step 8). -1 position means "not present in that list".
func rrfScore(bm25Rank, tfidfRank, k int) float64 {
	var score float64
	if bm25Rank >= 0 {
		score += 1.0 / float64(k+bm25Rank+1)
	}
	if tfidfRank >= 0 {
		score += 1.0 / float64(k+tfidfRank+1)
	}
	return score
}

func rankIndex(ranked []string, id string) int {
	for i, r := range ranked {
		if r == id {
			return i
		}
	}
	return -1
}
