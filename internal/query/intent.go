package query

import "regexp"

// intentPattern is one ordered entry in the intent detection table (§4.6
// step 2): a starts-with regex and a contains regex, each with its own
// confidence, tried in declaration order.
type intentPattern struct {
	intent             string
	startsWith         *regexp.Regexp
	contains           *regexp.Regexp
	startConfidence    float64
	containsConfidence float64
}

var intentPatterns = []intentPattern{
	{
		intent:             "why",
		startsWith:         regexp.MustCompile(`^why\b`),
		contains:           regexp.MustCompile(`\b(reason|rationale|because)\b`),
		startConfidence:    0.9,
		containsConfidence: 0.6,
	},
	{
		intent:             "how",
		startsWith:         regexp.MustCompile(`^how\b`),
		contains:           regexp.MustCompile(`\b(implement|steps?|approach)\b`),
		startConfidence:    0.9,
		containsConfidence: 0.6,
	},
	{
		intent:             "when",
		startsWith:         regexp.MustCompile(`^when\b`),
		contains:           regexp.MustCompile(`\b(date|timestamp|timeline)\b`),
		startConfidence:    0.9,
		containsConfidence: 0.6,
	},
	{
		intent:             "who",
		startsWith:         regexp.MustCompile(`^who\b`),
		contains:           regexp.MustCompile(`\b(author|assigned|owner)\b`),
		startConfidence:    0.9,
		containsConfidence: 0.6,
	},
	{
		intent:             "list",
		startsWith:         regexp.MustCompile(`^(list|show|enumerate)\b`),
		contains:           regexp.MustCompile(`\b(all|every|each)\b`),
		startConfidence:    0.85,
		containsConfidence: 0.55,
	},
	{
		intent:             "diff",
		startsWith:         regexp.MustCompile(`^(diff|compare|difference)\b`),
		contains:           regexp.MustCompile(`\b(versus|vs\.?|changed from)\b`),
		startConfidence:    0.85,
		containsConfidence: 0.55,
	},
	{
		intent:             "what",
		startsWith:         regexp.MustCompile(`^what\b`),
		contains:           regexp.MustCompile(`\b(is|are|does)\b`),
		startConfidence:    0.85,
		containsConfidence: 0.5,
	},
}

// detectIntent applies the ordered pattern table (§4.6 step 2): the first
// starts-with match wins; failing that, the first contains-match; failing
// that, "general" at 0.5.
func detectIntent(normalized string) (string, float64) {
	for _, p := range intentPatterns {
		if p.startsWith.MatchString(normalized) {
			return p.intent, p.startConfidence
		}
	}
	for _, p := range intentPatterns {
		if p.contains.MatchString(normalized) {
			return p.intent, p.containsConfidence
		}
	}
	return "general", 0.5
}
