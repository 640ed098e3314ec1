package rank

import (
	"testing"
	"time"

	"github.com/soynido/rl4/internal/chunk"
)

func mkChunk(id, content string, kind chunk.Kind, filePath, date string) chunk.Chunk {
	return chunk.Chunk{
		ID:      id,
		Content: content,
		Kind:    kind,
		Meta:    chunk.Meta{FilePath: filePath, Date: date},
	}
}

func TestBM25RanksExactMatchHigher(t *testing.T) {
	idx := newBM25Index()
	idx.add("a", "the ranker fuses bm25 and tfidf scores", "")
	idx.add("b", "completely unrelated content about cooking", "")
	ranked := idx.topN(tokenize("bm25 ranker"), 10)
	if len(ranked) == 0 || ranked[0] != "a" {
		t.Fatalf("expected doc a to rank first, got %v", ranked)
	}
}

func TestDedupRemovesDuplicateIDs(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("x", "one", chunk.KindCode, "a.go", ""),
		mkChunk("x", "one", chunk.KindCode, "a.go", ""),
		mkChunk("y", "two", chunk.KindCode, "b.go", ""),
	}
	out := dedup(chunks)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduplicated chunks, got %d", len(out))
	}
}

func TestEngineIdentityReuse(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("a", "content a", chunk.KindCode, "a.go", ""),
		mkChunk("b", "content b", chunk.KindCode, "b.go", ""),
	}
	e1 := Build("sig1", chunks, Filters{}, DefaultConfig())
	e2 := Build("sig1", chunks, Filters{}, DefaultConfig())
	if !e1.Reusable(e2.Identity()) {
		t.Error("expected identical inputs to produce the same identity")
	}
	e3 := Build("sig2", chunks, Filters{}, DefaultConfig())
	if e1.Reusable(e3.Identity()) {
		t.Error("expected a signature change to change the identity")
	}
}

func TestQueryFiltersBySourceKind(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("a", "deploy the ranker to staging", chunk.KindCode, "a.go", ""),
		mkChunk("b", "deploy the ranker to staging", chunk.KindChat, "", ""),
	}
	e := Build("sig", chunks, Filters{SourceKind: chunk.KindCode}, DefaultConfig())
	result := e.Query(Request{Query: "deploy ranker", Now: time.Now()})
	if len(result.Chunks) != 1 || result.Chunks[0].Chunk.ID != "a" {
		t.Fatalf("expected only the code chunk to survive the filter, got %+v", result.Chunks)
	}
}

func TestQueryCacheHit(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("a", "the cache should remember this query", chunk.KindCode, "a.go", ""),
	}
	e := Build("sig", chunks, Filters{}, DefaultConfig())
	first := e.Query(Request{Query: "cache remember", Now: time.Now()})
	if first.Trace.CacheHit {
		t.Error("first call should not be a cache hit")
	}
	second := e.Query(Request{Query: "  Cache   Remember ", Now: time.Now()})
	if !second.Trace.CacheHit {
		t.Error("normalized-equivalent query should hit the cache")
	}
}

func TestRelevanceTiers(t *testing.T) {
	if tierFor(0.9) != TierHigh {
		t.Error("expected high tier at 0.9")
	}
	if tierFor(0.5) != TierMedium {
		t.Error("expected medium tier at 0.5")
	}
	if tierFor(0.1) != TierLow {
		t.Error("expected low tier at 0.1")
	}
}

func TestFileMatchBoostAppliesOnce(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("a", "handles routing for main.go and main.go again", chunk.KindCode, "main.go", ""),
		mkChunk("b", "handles routing for unrelated.go", chunk.KindCode, "unrelated.go", ""),
	}
	cfg := DefaultConfig()
	e := Build("sig", chunks, Filters{}, cfg)
	result := e.Query(Request{
		Query:          "routing",
		ExtractedFiles: []string{"main.go"},
		Now:            time.Now(),
	})
	// BM25 ranks the shorter chunk b first, so a sits at fused position 1
	// with base score 1/2. One ×2 file-match boost lifts it to 1.0, level
	// with b; boosting again for the repeated "main.go" would give 2.0.
	got := -1.0
	for _, sc := range result.Chunks {
		if sc.Chunk.ID == "a" {
			got = sc.Score
		}
	}
	if got != 0.5*cfg.FileMatchBoost {
		t.Fatalf("expected the file-matched chunk to score %v (boost applied once), got %v in %+v", 0.5*cfg.FileMatchBoost, got, result.Chunks)
	}
}

func TestRelevanceReflectsRealRerankScoreNotPosition(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("a", "deploy the ranker to staging", chunk.KindCode, "a.go", ""),
		mkChunk("b", "deploy the ranker to staging for real this time", chunk.KindCode, "b.go", ""),
	}
	cfg := DefaultConfig()
	cfg.FileMatchBoost = 1
	cfg.RecencyBoost = 1
	e := Build("sig", chunks, Filters{}, cfg)
	result := e.Query(Request{Query: "deploy ranker staging", QueryTerms: tokenize("deploy ranker staging"), Now: time.Now()})
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result.Chunks))
	}
	// With no boosts in play, both chunks contain every query term and get
	// the same +0.5 overlap bonus on top of their base 1/(position+1), so the
	// real scores are 1.5 and 1.0. A position-based curve (1/(rank+1)) would
	// put the runner-up at 0.5; the real scores put it at 1.0/1.5.
	if result.Chunks[1].Relevance != 1.0/1.5 {
		t.Fatalf("expected runner-up relevance to track its real score (%f), got %f", 1.0/1.5, result.Chunks[1].Relevance)
	}
	if result.Chunks[0].Relevance != 1.0 {
		t.Fatalf("expected top result relevance to be exactly 1.0, got %f", result.Chunks[0].Relevance)
	}
}

func TestSourceBiasAffectsOrdering(t *testing.T) {
	chunks := []chunk.Chunk{
		mkChunk("decision", "we chose approach x", chunk.KindDecisions, "", ""),
		mkChunk("chat", "we chose approach x", chunk.KindChat, "", ""),
	}
	e := Build("sig", chunks, Filters{}, DefaultConfig())
	bias := func(intent string, kind chunk.Kind) float64 {
		if intent == "why" && kind == chunk.KindDecisions {
			return 2.0
		}
		return 1.0
	}
	result := e.Query(Request{Query: "chose approach", Intent: "why", SourceBias: bias, Now: time.Now()})
	if len(result.Chunks) == 0 || result.Chunks[0].Chunk.ID != "decision" {
		t.Fatalf("expected decisions chunk to be boosted to the top, got %+v", result.Chunks)
	}
}
