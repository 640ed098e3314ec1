package query

import "strings"

// synonymDict is a small static bilingual-style dictionary mapping common
// development vocabulary to its close synonyms, used to expand the query
// term set before it reaches the ranker (§4.6 step 4). Unlike the teacher's
// LLM-backed Translator, this stays fully static and offline per §1's
// Non-goal against model calls.
var synonymDict = map[string][]string{
	"bug":      {"defect", "issue", "error"},
	"fix":      {"patch", "repair", "resolve"},
	"feature":  {"feat", "capability"},
	"refactor": {"restructure", "rework", "cleanup"},
	"test":     {"spec", "check"},
	"delete":   {"remove", "drop"},
	"add":      {"introduce", "create"},
	"update":   {"modify", "change"},
	"revert":   {"rollback", "undo"},
	"perf":     {"performance", "optimization", "speed"},
	"docs":     {"documentation", "readme"},
	"config":   {"configuration", "settings"},
	"auth":     {"authentication", "authorization"},
	"db":       {"database", "datastore"},
	"api":      {"endpoint", "interface"},
	"deploy":   {"release", "ship"},
	"crash":    {"panic", "failure"},
	"slow":     {"latency", "bottleneck"},
	"security": {"vuln", "vulnerability"},
	"cache":    {"memoize", "store"},
}

// expandSynonyms unions synonym-dictionary entries for each base term and
// each lowercased identifier, capping the result at maxExpandedTerms to
// avoid diluting BM25 with low-signal additions (§4.6 step 4).
func expandSynonyms(baseTerms []string, identifiers []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(term string) bool {
		if seen[term] {
			return true
		}
		if len(out) >= maxExpandedTerms {
			return false
		}
		seen[term] = true
		out = append(out, term)
		return true
	}

	for _, t := range baseTerms {
		if !add(t) {
			return out
		}
	}
	candidates := append([]string{}, baseTerms...)
	for _, id := range identifiers {
		candidates = append(candidates, strings.ToLower(id))
	}
	for _, t := range candidates {
		for _, syn := range synonymDict[t] {
			if !add(syn) {
				return out
			}
		}
	}
	return out
}
