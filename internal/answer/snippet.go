// Package answer implements the answer formatter (C7): a structured,
// non-generative source bundle with adaptive snippets, a synthesis
// directive, a citation protocol, and a related-questions generator.
package answer

import (
	"strings"
	"unicode"
)

// snippetBudgets maps relevance tier to its character budget (§4.7 step 2).
var snippetBudgets = map[string]int{
	"high":   1200,
	"medium": 600,
	"low":    300,
}

// extractSnippet scores each line of content by query-term hits (with a
// mild length penalty), selects the top lines with a ±1-line context
// window, stops near 80% of budget, and reassembles in original order,
// inserting "[…]" between non-adjacent blocks (§4.7 step 2). Grounded in
// the sentence-scoring idiom of extractSnippet/significantWords, adapted
// from sentence-level to line-level scoring and from a fixed 300-char cap
// to the tier-adaptive budget this spec requires.
func extractSnippet(content string, queryTerms []string, budget int) string {
	if budget <= 0 {
		budget = snippetBudgets["low"]
	}
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return ""
	}

	termSet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		termSet[strings.ToLower(t)] = true
	}

	scored := make([]scoredLine, len(lines))
	for i, line := range lines {
		words := significantWords(line)
		hits := 0
		for w := range words {
			if termSet[w] {
				hits++
			}
		}
		lengthPenalty := 1.0
		if len(line) > 0 {
			lengthPenalty = 1.0 / (1.0 + float64(len(line))/200.0)
		}
		scored[i] = scoredLine{text: line, score: float64(hits) * lengthPenalty, index: i}
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sortByScoreDescStable(order, scored)

	selected := map[int]bool{}
	total := 0
	for _, idx := range order {
		if scored[idx].score <= 0 {
			break
		}
		if total >= int(float64(budget)*0.8) {
			break
		}
		for d := -1; d <= 1; d++ {
			j := idx + d
			if j < 0 || j >= len(lines) || selected[j] {
				continue
			}
			selected[j] = true
			total += len(lines[j])
		}
		if total >= budget {
			break
		}
	}

	if len(selected) == 0 {
		// No term hits anywhere: fall back to a plain head truncation so the
		// caller always gets something to show.
		return truncate(content, budget)
	}

	var b strings.Builder
	lastIdx := -2
	written := 0
	for i := 0; i < len(lines); i++ {
		if !selected[i] {
			continue
		}
		if i != lastIdx+1 && lastIdx != -2 {
			b.WriteString(" […] ")
		}
		b.WriteString(lines[i])
		lastIdx = i
		written += len(lines[i])
		if written >= budget {
			break
		}
	}
	return truncate(b.String(), budget)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}

// scoredLine is one line of a chunk scored by query-term overlap.
type scoredLine struct {
	text  string
	score float64
	index int
}

func sortByScoreDescStable(order []int, scored []scoredLine) {
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && scored[order[j]].score > scored[order[j-1]].score {
			order[j], order[j-1] = order[j-1], order[j]
			j--
		}
	}
}

// significantWords returns the set of lowercased words >= 3 characters,
// mirroring the teacher's significantWords but at a lower length floor
// since query terms here are already stop-word-filtered upstream by the
// query analyzer.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 3 {
			words[w] = true
		}
	}
	return words
}
