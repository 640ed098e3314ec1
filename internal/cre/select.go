package cre

// DropReason names why a candidate lesson was rejected from selection
// (§4.9 "Selection").
type DropReason string

const (
	DropBudget     DropReason = "budget"
	DropMaxItems   DropReason = "max_items"
	DropLowDensity DropReason = "low_density"
)

// CandidateLesson is a rejected lesson plus its drop reason, recorded on
// the intervention record (§3).
type CandidateLesson struct {
	ScoredLesson ScoredLesson `json:"scored_lesson"`
	DropReason   DropReason   `json:"drop_reason"`
}

// Selection is the result of greedy submodular selection under budget
// (§4.9): the chosen lessons with ranks 1..k, and the rejected ones with
// their drop reasons.
type Selection struct {
	Selected   []ScoredLesson
	Candidates []CandidateLesson
	Budget     int
	UsedTokens int
}

const (
	defaultTokenBudget = 300
	defaultMaxItems    = 4
)

// overlap implements §4.9's overlap formula between a candidate and an
// already-selected lesson:
//
//	clamp(0.5*same_origin + 0.3*same_type + 0.4*same_coupled_file, 0, 0.8)
func overlap(g proximityGraph, candidate, selected ScoredLesson) float64 {
	sameOrigin := 0.0
	if candidate.Lesson.OriginFile == selected.Lesson.OriginFile {
		sameOrigin = 1.0
	}
	sameType := 0.0
	if candidate.Lesson.Type == selected.Lesson.Type {
		sameType = 1.0
	}
	sameCoupled := 0.0
	if g != nil && candidate.Lesson.OriginFile != selected.Lesson.OriginFile {
		if weighted, ok := g.(interface{ Weight(a, b string) float64 }); ok {
			if weighted.Weight(candidate.Lesson.OriginFile, selected.Lesson.OriginFile) > 0 {
				sameCoupled = 1.0
			}
		}
	}
	return clamp(0.5*sameOrigin+0.3*sameType+0.4*sameCoupled, 0, 0.8)
}

// maxOverlap returns the largest overlap between candidate and any lesson
// already in selected.
func maxOverlap(g proximityGraph, candidate ScoredLesson, selected []ScoredLesson) float64 {
	best := 0.0
	for _, s := range selected {
		if o := overlap(g, candidate, s); o > best {
			best = o
		}
	}
	return best
}

// Select runs greedy submodular selection under a token budget (default
// 300, max 4 items), per §4.9. scored must already carry the three static
// axes (from ScoreLessons); Select fills in InfoGain and the final
// marginal density for whichever lesson it picks at each step.
func Select(scored []ScoredLesson, g proximityGraph, weights Weights, budget, maxItems int) Selection {
	if budget <= 0 {
		budget = defaultTokenBudget
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	pool := append([]ScoredLesson(nil), scored...)
	var selected []ScoredLesson
	remaining := budget

	for len(selected) < maxItems && len(pool) > 0 {
		bestIdx := -1
		var bestMarginal float64
		var bestInfoGain float64
		for i, c := range pool {
			if c.Tokens > remaining || c.Tokens == 0 {
				continue
			}
			ov := maxOverlap(g, c, selected)
			infoGain := c.Score * (1 - ov)
			marginal := (c.Score + weights.Delta*infoGain) / float64(c.Tokens)
			if bestIdx == -1 || marginal > bestMarginal ||
				(marginal == bestMarginal && c.Lesson.ID < pool[bestIdx].Lesson.ID) {
				bestIdx = i
				bestMarginal = marginal
				bestInfoGain = infoGain
			}
		}
		if bestIdx == -1 {
			break
		}
		chosen := pool[bestIdx]
		chosen.Axes.InfoGain = bestInfoGain
		chosen.Density = bestMarginal
		chosen.DensityBucket = densityBucket(chosen.Density)
		selected = append(selected, chosen)
		remaining -= chosen.Tokens
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	hitMaxItems := len(selected) >= maxItems
	candidates := make([]CandidateLesson, 0, len(pool))
	for _, c := range pool {
		reason := DropLowDensity
		if c.Tokens > remaining {
			reason = DropBudget
		} else if hitMaxItems {
			reason = DropMaxItems
		}
		candidates = append(candidates, CandidateLesson{ScoredLesson: c, DropReason: reason})
	}

	usedTokens := budget - remaining
	return Selection{Selected: selected, Candidates: candidates, Budget: budget, UsedTokens: usedTokens}
}
