package rank

import (
	"strings"

	"github.com/soynido/rl4/internal/chunk"
)

// Identity is the engine-reuse key (§4.5 "Engine identity"): (current
// index signature, filtered-set identity). Filtered-set identity is a
// cheap composite of size, first id, and last id rather than a hash over
// every chunk, since re-hashing the whole filtered set on every query
// would defeat the point of caching the engine.
type Identity struct {
	IndexSignature string
	FilteredSize   int
	FilteredFirst  string
	FilteredLast   string
}

func (id Identity) equal(other Identity) bool {
	return id == other
}

// Engine is a ranker built once over one filtered chunk set and reused
// across queries that share the same Identity (§4.5).
type Engine struct {
	identity Identity
	chunks   []chunk.Chunk
	byID     map[string]chunk.Chunk
	bm25     *bm25Index
	tfidf    *tfidfIndex
	cache    *semanticCache
	cfg      Config
}

// Build constructs an Engine over indexSignature + the chunks that pass
// filters, deduplicating by id first (the same file can reach the index
// through both the snapshot and the live-scan paths, per §4.5).
func Build(indexSignature string, all []chunk.Chunk, filters Filters, cfg Config) *Engine {
	filtered := applyFilters(all, filters)
	deduped := dedup(filtered)

	e := &Engine{
		chunks: deduped,
		byID:   make(map[string]chunk.Chunk, len(deduped)),
		bm25:   newBM25Index(),
		tfidf:  newTFIDFIndex(),
		cache:  newSemanticCache(cfg.CacheSize),
		cfg:    cfg,
	}
	for _, c := range deduped {
		e.byID[c.ID] = c
		e.bm25.add(c.ID, c.Content, c.Meta.Tag)
		e.tfidf.add(c.ID, c.Content, c.Meta.Tag)
	}

	identity := Identity{IndexSignature: indexSignature, FilteredSize: len(deduped)}
	if len(deduped) > 0 {
		identity.FilteredFirst = deduped[0].ID
		identity.FilteredLast = deduped[len(deduped)-1].ID
	}
	e.identity = identity
	return e
}

// Identity returns this engine's reuse key.
func (e *Engine) Identity() Identity { return e.identity }

// Reusable reports whether this engine can serve a query against the given
// identity without rebuilding.
func (e *Engine) Reusable(want Identity) bool {
	return e.identity.equal(want)
}

func dedup(chunks []chunk.Chunk) []chunk.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func applyFilters(chunks []chunk.Chunk, f Filters) []chunk.Chunk {
	if f == (Filters{}) {
		return chunks
	}
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if f.SourceKind != "" && c.Kind != f.SourceKind {
			continue
		}
		if f.Tag != "" && c.Meta.Tag != f.Tag {
			continue
		}
		if f.FileSubstr != "" && !strings.Contains(c.Meta.FilePath, f.FileSubstr) {
			continue
		}
		if f.DateFrom != "" && c.Meta.Date != "" && c.Meta.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && c.Meta.Date != "" && c.Meta.Date > f.DateTo {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Query executes one ranked retrieval per §4.5 steps 1-8.
func (e *Engine) Query(req Request) Result {
	req.Query = normalizeQuery(req.Query)

	key := cacheKey{query: req.Query, filters: filtersKey(req.Filters)}
	if cached, ok := e.cache.get(key); ok {
		cached.Trace.CacheHit = true
		return cached
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	queryTerms := req.QueryTerms
	if len(queryTerms) == 0 {
		queryTerms = tokenize(req.Query)
	}

	topW := e.cfg.TopW
	if topW <= 0 {
		topW = 50
	}

	bm25Ranked := e.bm25.topN(queryTerms, topW)
	tfidfRanked := e.tfidf.topN(queryTerms, topW)

	fused := fuseRRF(bm25Ranked, tfidfRanked, e.cfg.RRFConstant)
	if len(fused) > topW {
		fused = fused[:topW]
	}

	reranked := rerank(fused, e.byID, req, e.cfg)
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}

	topFusedScore := 0.0
	if len(fused) > 0 {
		topFusedScore = rrfScore(
			rankIndex(bm25Ranked, fused[0]),
			rankIndex(tfidfRanked, fused[0]),
			e.cfg.RRFConstant,
		)
	}

	// Relevance normalizes each chunk's real composite reranker score
	// against the top-scored result (§4.5 step 7), not against a synthetic
	// position curve — two chunks with nearly equal composite scores must
	// land on the same side of a tier boundary.
	scored := make([]ScoredChunk, 0, len(reranked))
	var topScore float64
	if len(reranked) > 0 {
		topScore = reranked[0].score
	}
	for _, r := range reranked {
		relevance := 0.0
		if topScore > 0 {
			relevance = r.score / topScore
		}
		scored = append(scored, ScoredChunk{
			Chunk:     e.byID[r.id],
			Score:     r.score,
			Relevance: relevance,
			Tier:      tierFor(relevance),
		})
	}

	confidence := topFusedScore / (2.0 / float64(e.cfg.RRFConstant+1))
	if confidence > 1 {
		confidence = 1
	}

	result := Result{
		Chunks:     scored,
		Confidence: confidence,
		Trace: Trace{
			BM25Candidates:  len(bm25Ranked),
			TFIDFCandidates: len(tfidfRanked),
			FusedCandidates: len(fused),
		},
	}
	e.cache.put(key, result)
	return result
}
