package answer

import (
	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/rank"
)

// Source is one numbered, cited entry in a formatted bundle (§4.7 step 2).
type Source struct {
	Index   int
	File    string
	Range   string
	Date    string
	Kind    chunk.Kind
	Tier    rank.Tier
	Snippet string
}

// Bundle is the full three-step structured text this package produces for
// one query: a header, a cited source list, and a synthesis directive plus
// citation protocol, along with a separately-generated related-questions
// list (§4.7). Text holds the final assembled, size-capped rendering.
type Bundle struct {
	Header             string
	Sources            []Source
	SynthesisDirective string
	CitationProtocol   string
	RelatedQuestions   []string
	DroppedLowTier     int
	MoreSourcesNotice  string
	Text               string
}
