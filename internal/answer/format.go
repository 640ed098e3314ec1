package answer

import (
	"fmt"
	"strings"

	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/query"
	"github.com/soynido/rl4/internal/rank"
)

// maxBundleBytes is the hard output cap (§4.7 step 2 "~12 KB").
const maxBundleBytes = 12 * 1024

// minRemainingForSource is the remaining-budget floor below which the
// formatter stops emitting sources and prints the "more sources" notice
// instead (§4.7 step 2).
const minRemainingForSource = 100

// dropLowTierConfidence is the overall-confidence threshold above which
// low-tier sources are dropped to save budget (§4.7 step 2).
const dropLowTierConfidence = 0.7

// synthesisDirectives maps intent to the structure the answer should follow,
// grounded in the teacher's per-intent prompt shaping (§4.7 step 3).
var synthesisDirectives = map[string]string{
	"why":     "context → decision → rationale",
	"how":     "stepwise implementation",
	"what":    "definition → current state",
	"when":    "chronological ordering",
	"who":     "attribution → contribution",
	"list":    "enumerate all matches",
	"diff":    "before → after → delta",
	"general": "most relevant facts first",
}

const citationProtocol = "Cite sources inline as [1], [2]. Prefer ●●● sources when available. State gaps explicitly when evidence is incomplete."

// Format assembles the structured, non-generative answer bundle for one
// ranked result set (§4.7).
func Format(result rank.Result, analysis query.Analysis, rawQuery string) Bundle {
	chunks := result.Chunks
	droppedLowTier := 0
	if result.Confidence >= dropLowTierConfidence {
		filtered := make([]rank.ScoredChunk, 0, len(chunks))
		for _, c := range chunks {
			if c.Tier == rank.TierLow {
				droppedLowTier++
				continue
			}
			filtered = append(filtered, c)
		}
		chunks = filtered
	}

	bundle := Bundle{
		SynthesisDirective: directiveFor(analysis.Intent),
		CitationProtocol:   citationProtocol,
		DroppedLowTier:     droppedLowTier,
	}

	highCount, medCount := 0, 0
	for _, c := range chunks {
		switch c.Tier {
		case rank.TierHigh:
			highCount++
		case rank.TierMedium:
			medCount++
		}
	}
	bundle.Header = formatHeader(rawQuery, analysis.Intent, highCount, medCount, result.Confidence)
	bundle.RelatedQuestions = RelatedQuestions(chunks, analysis)

	sources := make([]Source, 0, len(chunks))
	for i, c := range chunks {
		budget := snippetBudgets["low"]
		switch c.Tier {
		case rank.TierHigh:
			budget = snippetBudgets["high"]
		case rank.TierMedium:
			budget = snippetBudgets["medium"]
		}
		snippet := extractSnippet(c.Chunk.Content, analysis.ExpandedTerms, budget)
		sources = append(sources, Source{
			Index:   i + 1,
			File:    c.Chunk.Citation.File,
			Range:   c.Chunk.Citation.Range,
			Date:    c.Chunk.Citation.Date,
			Kind:    c.Chunk.Kind,
			Tier:    c.Tier,
			Snippet: snippet,
		})
	}

	var b strings.Builder
	b.WriteString(bundle.Header)
	b.WriteString("\n\n")
	used := b.Len()

	emitted := make([]Source, 0, len(sources))
	moreCount := 0
	for _, s := range sources {
		remaining := maxBundleBytes - used
		if remaining < minRemainingForSource {
			moreCount = len(sources) - len(emitted)
			break
		}
		entry := formatSourceEntry(s)
		if len(entry) > remaining {
			entry = entry[:remaining]
		}
		b.WriteString(entry)
		used = b.Len()
		emitted = append(emitted, s)
	}
	bundle.Sources = emitted

	if moreCount > 0 {
		bundle.MoreSourcesNotice = fmt.Sprintf("%d more sources available", moreCount)
		b.WriteString(bundle.MoreSourcesNotice)
		b.WriteString("\n\n")
	}

	b.WriteString("Synthesis: ")
	b.WriteString(bundle.SynthesisDirective)
	b.WriteString("\n")
	b.WriteString(bundle.CitationProtocol)
	bundle.Text = b.String()
	if len(bundle.Text) > maxBundleBytes {
		bundle.Text = bundle.Text[:maxBundleBytes]
	}
	return bundle
}

func directiveFor(intent string) string {
	if d, ok := synthesisDirectives[intent]; ok {
		return d
	}
	return synthesisDirectives["general"]
}

func formatHeader(rawQuery, intent string, high, medium int, confidence float64) string {
	return fmt.Sprintf("Query: %q — intent: %s (%s) — %d high, %d medium relevance sources",
		rawQuery, intent, confidenceLabel(confidence), high, medium)
}

func confidenceLabel(confidence float64) string {
	switch {
	case confidence >= 0.7:
		return "high confidence"
	case confidence >= 0.35:
		return "medium confidence"
	default:
		return "low confidence"
	}
}

// formatSourceEntry renders one numbered, cited source line followed by its
// snippet. The citation line carries the file path, the range (a code
// chunk's line range is prefixed with "L"), and " | YYYY-MM-DD" when a date
// is known, so it satisfies the guardrail's citation pattern (§6) through a
// path under .rl4/, an L-prefixed line range, or a date.
func formatSourceEntry(s Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", s.Index, s.File)
	if s.Range != "" {
		rng := s.Range
		if s.Kind == chunk.KindCode && !strings.HasPrefix(rng, "L") {
			rng = "L" + rng
		}
		fmt.Fprintf(&b, " (%s)", rng)
	}
	if s.Date != "" {
		fmt.Fprintf(&b, " | %s", s.Date)
	}
	fmt.Fprintf(&b, " %s\n", s.Tier)
	b.WriteString(s.Snippet)
	b.WriteString("\n\n")
	return b.String()
}
