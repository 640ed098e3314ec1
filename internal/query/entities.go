package query

import "regexp"

var (
	filePathPattern = regexp.MustCompile(`\b[\w./-]+\.(go|js|ts|tsx|jsx|py|java|rs|rb|md|json|yaml|yml|sql|sh)\b`)
	datePattern     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	identifierPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*[A-Z][a-zA-Z0-9]*\b`)
)

// tagSet is the small fixed closed set of recognized tags (§4.6 step 3).
var tagSet = map[string]bool{
	"FIX": true, "FEAT": true, "ARCH": true, "DOCS": true,
	"TEST": true, "PERF": true, "REFACTOR": true, "CHORE": true,
	"SECURITY": true, "DECISION": true,
}

type entities struct {
	Files       []string
	Dates       []string
	Tags        []string
	Identifiers []string
}

// extractEntities runs three entity regexes over the query (§4.6 step 3):
// file paths, dates, and tokens with at least two upper-case letters; of
// the latter, those in tagSet become tags and the rest identifiers. Analyze
// passes the trimmed query with its case preserved, not the normalized one.
func extractEntities(normalized string) entities {
	var e entities
	e.Files = uniqueMatches(filePathPattern, normalized)
	e.Dates = uniqueMatches(datePattern, normalized)

	for _, tag := range uniqueMatches(identifierPattern, normalized) {
		upper := toUpper(tag)
		if tagSet[upper] {
			e.Tags = append(e.Tags, upper)
		} else {
			e.Identifiers = append(e.Identifiers, tag)
		}
	}
	return e
}

func uniqueMatches(re *regexp.Regexp, s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range re.FindAllString(s, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
