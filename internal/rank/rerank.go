package rank

import (
	"strings"
	"time"

	"github.com/soynido/rl4/internal/chunk"
)

// rerank applies the feature reranker (§4.5.1) to fused, in order, and
// returns the same ids re-sorted by the resulting composite score, paired
// with that score so callers can normalize relevance against the real
// magnitudes instead of rebuilding a curve from rank position.
func rerank(fused []string, byID map[string]chunk.Chunk, req Request, cfg Config) []rerankScore {
	results := make([]rerankScore, 0, len(fused))
	queryTermSet := make(map[string]bool, len(req.QueryTerms))
	for _, t := range req.QueryTerms {
		queryTermSet[t] = true
	}

	for position, id := range fused {
		c := byID[id]
		score := 1.0 / float64(position+1)
		score = applyRecencyBoost(score, c, req.Now, cfg)
		score = applySourceBias(score, c, req)
		score = applyFileMatchBoost(score, c, req, cfg)
		score += termOverlapBonus(c, req.QueryTerms, queryTermSet)
		results = append(results, rerankScore{id: id, score: score, order: position})
	}

	stableSortByScoreDesc(results)
	return results
}

// rerankScore is one candidate's composite feature-reranker score.
type rerankScore struct {
	id    string
	score float64
	order int
}

func stableSortByScoreDesc(results []rerankScore) {
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j].score > results[j-1].score {
			results[j], results[j-1] = results[j-1], results[j]
			j--
		}
	}
}

// applyRecencyBoost multiplies score by cfg.RecencyBoost when the chunk's
// date falls within cfg.RecencyDays of now, tapering off for older chunks
// (§4.5.1 "Recency boost").
func applyRecencyBoost(score float64, c chunk.Chunk, now time.Time, cfg Config) float64 {
	if c.Meta.Date == "" {
		return score
	}
	date, err := time.Parse("2006-01-02", c.Meta.Date[:minInt(10, len(c.Meta.Date))])
	if err != nil {
		return score
	}
	days := now.Sub(date).Hours() / 24
	if days < 0 {
		days = 0
	}
	if days <= float64(cfg.RecencyDays) {
		return score * cfg.RecencyBoost
	}
	factor := maxFloat(1, cfg.RecencyBoost*float64(cfg.RecencyDays)/days)
	return score * factor
}

// applySourceBias multiplies score by the per-intent source bias table
// (§4.5.1 "Source bias"), computed by the query analyzer.
func applySourceBias(score float64, c chunk.Chunk, req Request) float64 {
	if req.SourceBias == nil {
		return score
	}
	return score * req.SourceBias(req.Intent, c.Kind)
}

// applyFileMatchBoost multiplies score by cfg.FileMatchBoost, at most once
// per chunk, when any extracted file path from the query appears in the
// chunk's content or file metadata (§4.5.1 "File match").
func applyFileMatchBoost(score float64, c chunk.Chunk, req Request, cfg Config) float64 {
	for _, f := range req.ExtractedFiles {
		if f == "" {
			continue
		}
		if strings.Contains(c.Meta.FilePath, f) || strings.Contains(c.Content, f) {
			return score * cfg.FileMatchBoost
		}
	}
	return score
}

// termOverlapBonus adds 0.5 · (fraction of the distinct terms in
// req.QueryTerms appearing in the chunk) (§4.5.1 "Term overlap"). Those are
// the terms the caller passes, post-expansion for the rl4 engine; the
// unexpanded query terms are not kept apart, and a request with no
// QueryTerms gets no bonus.
func termOverlapBonus(c chunk.Chunk, queryTerms []string, queryTermSet map[string]bool) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := tokenize(c.Content)
	present := make(map[string]bool, len(contentTerms))
	for _, t := range contentTerms {
		present[t] = true
	}
	hits := 0
	for t := range queryTermSet {
		if present[t] {
			hits++
		}
	}
	return 0.5 * float64(hits) / float64(len(queryTermSet))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
