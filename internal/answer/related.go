package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/query"
	"github.com/soynido/rl4/internal/rank"
)

// maxRelatedQuestions caps the related-questions list (§4.7 "Related
// questions").
const maxRelatedQuestions = 5

// allKinds lists every source kind, used to find kinds absent from a result
// set for cross-exploration suggestions.
var allKinds = []chunk.Kind{
	chunk.KindEvidence, chunk.KindTimeline, chunk.KindDecisions,
	chunk.KindChat, chunk.KindCLI, chunk.KindCode,
}

// intentTemplates maps intent to a topic-parameterized follow-up question.
var intentTemplates = map[string]string{
	"why":     "Why was %s introduced?",
	"how":     "How is %s implemented?",
	"what":    "What is %s?",
	"when":    "When was %s last changed?",
	"who":     "Who worked on %s?",
	"list":    "What else touches %s?",
	"diff":    "What changed in %s?",
	"general": "Tell me more about %s",
}

// RelatedQuestions generates at most maxRelatedQuestions follow-up
// questions from the result set and the query analysis (§4.7).
func RelatedQuestions(chunks []rank.ScoredChunk, analysis query.Analysis) []string {
	seen := map[string]bool{}
	var out []string
	add := func(q string) {
		if q == "" || seen[q] || len(out) >= maxRelatedQuestions {
			return
		}
		seen[q] = true
		out = append(out, q)
	}

	// (a) filenames of the top chunks.
	for _, c := range chunks {
		if len(out) >= maxRelatedQuestions {
			break
		}
		if f := c.Chunk.Citation.File; f != "" {
			add(fmt.Sprintf("What else references %s?", f))
		}
	}

	// (b) detected tags.
	for _, tag := range analysis.Tags {
		add(fmt.Sprintf("Show me all %s items", tag))
	}

	// (c) latest date in the result set.
	if latest := latestDate(chunks); latest != "" {
		add(fmt.Sprintf("What happened on %s?", latest))
	}

	// (d) section names.
	for _, c := range chunks {
		if s := c.Chunk.Meta.Section; s != "" {
			add(fmt.Sprintf("What's in the %s section?", s))
		}
	}

	// (e) cross-exploration into source kinds not represented.
	for _, kind := range missingKinds(chunks) {
		add(fmt.Sprintf("Search %s history for this?", kind))
	}

	// (f) intent-typed template parameterized by a topic.
	topic := extractTopic(chunks, analysis)
	if topic != "" {
		tmpl := intentTemplates[analysis.Intent]
		if tmpl == "" {
			tmpl = intentTemplates["general"]
		}
		add(fmt.Sprintf(tmpl, topic))
	}

	return out
}

func latestDate(chunks []rank.ScoredChunk) string {
	latest := ""
	for _, c := range chunks {
		d := c.Chunk.Meta.Date
		if d == "" {
			continue
		}
		if d > latest {
			latest = d
		}
	}
	return latest
}

func missingKinds(chunks []rank.ScoredChunk) []chunk.Kind {
	present := map[chunk.Kind]bool{}
	for _, c := range chunks {
		present[c.Chunk.Kind] = true
	}
	var missing []chunk.Kind
	for _, k := range allKinds {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// extractTopic picks a topic for the intent-typed template: a detected
// identifier first, else the top bigram appearing at least twice with at
// least 8 characters, else the top unigram (§4.7 "Related questions" (f)).
func extractTopic(chunks []rank.ScoredChunk, analysis query.Analysis) string {
	if len(analysis.Identifiers) > 0 {
		return analysis.Identifiers[0]
	}

	var content strings.Builder
	for _, c := range chunks {
		content.WriteString(c.Chunk.Content)
		content.WriteString(" ")
	}
	words := significantWords(content.String())
	tokens := strings.Fields(strings.ToLower(content.String()))

	bigramCounts := map[string]int{}
	for i := 0; i+1 < len(tokens); i++ {
		bg := tokens[i] + " " + tokens[i+1]
		if len(bg) >= 8 {
			bigramCounts[bg]++
		}
	}
	if bg := topByCount(bigramCounts, 2); bg != "" {
		return bg
	}

	unigramCounts := map[string]int{}
	for w := range words {
		unigramCounts[w] = strings.Count(" "+strings.ToLower(content.String())+" ", " "+w+" ")
	}
	return topByCount(unigramCounts, 1)
}

// topByCount returns the lexicographically-smallest key with the highest
// count at or above minCount, for deterministic selection among ties.
func topByCount(counts map[string]int, minCount int) string {
	best := ""
	bestCount := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := counts[k]
		if c < minCount {
			continue
		}
		if c > bestCount {
			best = k
			bestCount = c
		}
	}
	return best
}
