package chunk

import (
	"fmt"

	"github.com/soynido/rl4/internal/evidence"
)

// Decisions produces one chunk per decision record: content is
// "intent → chosen_option (timestamp)" per §4.3.
func Decisions(path string, records []evidence.DecisionRecord) []Chunk {
	chunks := make([]Chunk, 0, len(records))
	for _, r := range records {
		body := fmt.Sprintf("%s → %s (%s)", r.IntentText, r.ChosenOption, r.ISOTimestamp)
		meta := Meta{FilePath: path, Date: r.ISOTimestamp, ThreadID: r.ThreadID, Tag: "DECISION"}
		chunks = append(chunks, New(body, KindDecisions, path+"#"+r.ID, meta))
	}
	return chunks
}
