package rank

import (
	"math"
	"sort"
)

// tfidfIndex holds a pre-tokenized term-frequency map plus a term set per
// chunk, as named in §4.5's engine contract — this lets query execution
// score in O((unique query terms × N) + (N × |query|)) instead of
// re-tokenizing every chunk on every call.
type tfidfIndex struct {
	order   []string
	tf      map[string]map[string]int // doc id -> term -> count
	termSet map[string]map[string]bool
	df      map[string]int
}

func newTFIDFIndex() *tfidfIndex {
	return &tfidfIndex{
		tf:      map[string]map[string]int{},
		termSet: map[string]map[string]bool{},
		df:      map[string]int{},
	}
}

func (idx *tfidfIndex) add(id, content, tag string) {
	if _, exists := idx.tf[id]; exists {
		return
	}
	terms := tokenize(content + " " + tag)
	tf := map[string]int{}
	set := map[string]bool{}
	for _, t := range terms {
		tf[t]++
		set[t] = true
	}
	idx.tf[id] = tf
	idx.termSet[id] = set
	idx.order = append(idx.order, id)
	for t := range set {
		idx.df[t]++
	}
}

func (idx *tfidfIndex) idf(term string) float64 {
	n := float64(len(idx.tf))
	df := float64(idx.df[term])
	if df == 0 {
		return 0
	}
	return math.Log(n / df)
}

// score computes a plain TF·IDF dot product between queryTerms and doc id.
func (idx *tfidfIndex) score(id string, queryTerms []string) float64 {
	tf, ok := idx.tf[id]
	if !ok {
		return 0
	}
	var score float64
	for _, qt := range queryTerms {
		if count, present := tf[qt]; present {
			score += float64(count) * idx.idf(qt)
		}
	}
	return score
}

func (idx *tfidfIndex) topN(queryTerms []string, n int) []string {
	type scored struct {
		id    string
		score float64
	}
	results := make([]scored, 0, len(idx.order))
	for _, id := range idx.order {
		s := idx.score(id, queryTerms)
		if s > 0 {
			results = append(results, scored{id, s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	return ids
}
