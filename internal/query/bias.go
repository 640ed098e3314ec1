package query

import "github.com/soynido/rl4/internal/chunk"

// sourceBiasTable holds the per-intent multiplicative factors the feature
// reranker applies per source kind (§4.5.1 "Source bias", §4.6 step 5).
// Unlisted (intent, kind) pairs default to 1.0 (no bias).
var sourceBiasTable = map[string]map[chunk.Kind]float64{
	"why": {
		chunk.KindDecisions: 2.0,
		chunk.KindTimeline:  1.5,
	},
	"when": {
		chunk.KindTimeline: 2.0,
	},
	"who": {
		chunk.KindChat: 1.5,
	},
	"how": {
		chunk.KindCode: 1.5,
		chunk.KindCLI:  1.3,
	},
	"list": {
		chunk.KindEvidence: 1.3,
	},
	"diff": {
		chunk.KindCode: 1.5,
	},
}

// SourceBias returns the per-intent, per-source-kind multiplicative bias,
// matching rank.SourceBiasFunc's signature so callers can pass this
// function directly into a rank.Request.
func SourceBias(intent string, kind chunk.Kind) float64 {
	table, ok := sourceBiasTable[intent]
	if !ok {
		return 1.0
	}
	if factor, ok := table[kind]; ok {
		return factor
	}
	return 1.0
}
