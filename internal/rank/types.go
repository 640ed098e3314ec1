// Package rank implements the hybrid ranker (C5): a BM25 + TF-IDF engine
// fused by Reciprocal Rank Fusion, followed by a feature reranker, with a
// semantic query cache reused across calls against the same filtered chunk
// set.
package rank

import (
	"time"

	"github.com/soynido/rl4/internal/chunk"
)

// Config tunes the ranker. It mirrors rl4.RankerConfig without importing
// the root package, the same pattern used by internal/evidence for
// ScannerConfig, to keep internal/* free of a dependency on the module
// root.
type Config struct {
	RRFConstant    int
	TopW           int
	DefaultLimit   int
	MaxLimit       int
	RecencyDays    int
	RecencyBoost   float64
	FileMatchBoost float64
	CacheSize      int
}

// DefaultConfig mirrors rl4.DefaultConfig().Ranker.
func DefaultConfig() Config {
	return Config{
		RRFConstant:    60,
		TopW:           50,
		DefaultLimit:   10,
		MaxLimit:       20,
		RecencyDays:    7,
		RecencyBoost:   1.5,
		FileMatchBoost: 2.0,
		CacheSize:      256,
	}
}

// Filters narrows the chunk set before ranking (§4.5 step 3).
type Filters struct {
	SourceKind chunk.Kind
	Tag        string
	FileSubstr string
	DateFrom   string // inclusive, ISO-8601 date
	DateTo     string // inclusive, ISO-8601 date
}

// SourceBiasFunc returns the per-intent, per-source-kind multiplicative
// bias used by the feature reranker (§4.5.1, computed by the query
// analyzer per §4.6 step 5).
type SourceBiasFunc func(intent string, kind chunk.Kind) float64

// Request is one query execution against the engine.
type Request struct {
	Query          string
	QueryTerms     []string // tokens of the normalized query, post-expansion
	Intent         string
	ExtractedFiles []string // file paths extracted from the query by C6
	Filters        Filters
	Limit          int
	Now            time.Time
	SourceBias     SourceBiasFunc
}

// Tier is the coarse relevance bucket attached to every scored chunk.
type Tier string

const (
	TierHigh   Tier = "●●●"
	TierMedium Tier = "●●○"
	TierLow    Tier = "●○○"
)

func tierFor(relevance float64) Tier {
	switch {
	case relevance >= 0.7:
		return TierHigh
	case relevance >= 0.35:
		return TierMedium
	default:
		return TierLow
	}
}

// ScoredChunk is one ranked result.
type ScoredChunk struct {
	Chunk     chunk.Chunk
	Score     float64
	Relevance float64 // normalized to [0,1] against the top-scored result
	Tier      Tier
}

// Result is the outcome of one Query call.
type Result struct {
	Chunks     []ScoredChunk
	Confidence float64
	Trace      Trace
}

// Trace records per-method diagnostics for a single query, ported from the
// teacher's retrieval.SearchTrace (see SPEC_FULL.md §4.15).
type Trace struct {
	BM25Candidates   int
	TFIDFCandidates  int
	FusedCandidates  int
	CacheHit         bool
	ElapsedMs        int64
}
