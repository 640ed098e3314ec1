package rank

import (
	"math"
	"sort"
	"strings"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Doc is one document added to a bm25Index: the chunk's searchable
// fields concatenated per §4.5 ("one document per chunk with fields
// {content, tag}").
type bm25Doc struct {
	id     string
	terms  []string
	length int
}

// bm25Index is a classic Okapi BM25 index over a fixed document set.
type bm25Index struct {
	docs     map[string]bm25Doc
	order    []string
	df       map[string]int // document frequency per term
	avgLen   float64
	totalLen int
}

func newBM25Index() *bm25Index {
	return &bm25Index{
		docs: map[string]bm25Doc{},
		df:   map[string]int{},
	}
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9'))
	})
	return fields
}

// add indexes one document under id with the given content and tag fields.
// Adding the same id twice is a caller error (the dedup pass must run
// first); add silently ignores the second call.
func (b *bm25Index) add(id, content, tag string) {
	if _, exists := b.docs[id]; exists {
		return
	}
	terms := tokenize(content + " " + tag)
	doc := bm25Doc{id: id, terms: terms, length: len(terms)}
	b.docs[id] = doc
	b.order = append(b.order, id)
	b.totalLen += len(terms)

	seen := map[string]bool{}
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			b.df[t]++
		}
	}
	b.avgLen = float64(b.totalLen) / float64(len(b.docs))
}

// idf computes the BM25 inverse document frequency for term, using the
// standard +1 smoothing so a term present in most documents still gets a
// small positive idf rather than a negative one.
func (b *bm25Index) idf(term string) float64 {
	n := float64(len(b.docs))
	df := float64(b.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// score returns the BM25 score of query against the document with the
// given id, 0 if the id is unknown.
func (b *bm25Index) score(id string, queryTerms []string) float64 {
	doc, ok := b.docs[id]
	if !ok {
		return 0
	}
	tf := map[string]int{}
	for _, t := range doc.terms {
		tf[t]++
	}
	var score float64
	for _, qt := range queryTerms {
		f := float64(tf[qt])
		if f == 0 {
			continue
		}
		idf := b.idf(qt)
		norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.length)/maxFloat(b.avgLen, 1))
		score += idf * (f * (bm25K1 + 1)) / (f + norm)
	}
	return score
}

// topN returns the top-n document ids by BM25 score against queryTerms, in
// the index's insertion order among ties (stable sort is not required by
// the spec, but deterministic output is, so ties keep insertion order).
func (b *bm25Index) topN(queryTerms []string, n int) []string {
	type scored struct {
		id    string
		score float64
	}
	results := make([]scored, 0, len(b.order))
	for _, id := range b.order {
		s := b.score(id, queryTerms)
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

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
