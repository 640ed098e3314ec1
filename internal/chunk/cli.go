package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soynido/rl4/internal/evidence"
)

// CLI groups CLI history events by session id, then fixed-size windows of
// windowEvents, formatting each event as
// "[tool] command (status [+duration]) → first line of stdout preview"
// per §4.3 "CLI".
func CLI(path string, records []evidence.CLIRecord, windowEvents int) []Chunk {
	if windowEvents <= 0 {
		windowEvents = 20
	}

	bySession := make(map[string][]evidence.CLIRecord)
	for _, r := range records {
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}
	sessionIDs := make([]string, 0, len(bySession))
	for id := range bySession {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	var chunks []Chunk
	for _, sid := range sessionIDs {
		recs := bySession[sid]
		sort.Slice(recs, func(i, j int) bool { return recs[i].T < recs[j].T })

		for start := 0; start < len(recs); start += windowEvents {
			end := start + windowEvents
			if end > len(recs) {
				end = len(recs)
			}
			window := recs[start:end]

			var b strings.Builder
			for _, r := range window {
				status := "ok"
				if r.ExitCode != 0 {
					status = fmt.Sprintf("exit %d", r.ExitCode)
				}
				dur := ""
				if r.DurationMs > 0 {
					dur = fmt.Sprintf(" +%dms", r.DurationMs)
				}
				preview := firstLine(r.StdoutPreview)
				fmt.Fprintf(&b, "[%s] %s (%s%s) → %s\n", r.Tool, r.Command, status, dur, preview)
			}
			rangeKey := fmt.Sprintf("%s#%d-%d", sid, start, end)
			meta := Meta{FilePath: path, ThreadID: sid}
			if len(window) > 0 {
				meta.FirstMs, meta.LastMs = window[0].T, window[len(window)-1].T
			}
			chunks = append(chunks, New(strings.TrimSpace(b.String()), KindCLI, rangeKey, meta))
		}
	}
	return chunks
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
