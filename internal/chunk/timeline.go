package chunk

import (
	"regexp"
	"strings"
)

var (
	h2Heading   = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	dateHeading = regexp.MustCompile(`^###\s+(\d{4}-\d{2}-\d{2})\s*$`)
	timeHeading = regexp.MustCompile(`^####\s+(\d{2}:\d{2}(?:\s*[-–—]\s*\d{2}:\d{2})?)\s*$`)
)

// Timeline splits the timeline.md journal into chunks at second-level
// headings, then date sub-headings (YYYY-MM-DD), then time-range
// sub-sub-headings (HH:MM) per §4.3 "Timeline journal".
func Timeline(path, content string) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	var section, date, timeRange string
	var buf []string
	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if body == "" {
			return
		}
		rangeKey := path + "#" + section + "#" + date + "#" + timeRange
		meta := Meta{FilePath: path, Section: section, Date: date, LineRange: timeRange}
		chunks = append(chunks, New(body, KindTimeline, rangeKey, meta))
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if m := h2Heading.FindStringSubmatch(line); m != nil {
			flush()
			section, date, timeRange = strings.TrimSpace(m[1]), "", ""
			continue
		}
		if m := dateHeading.FindStringSubmatch(line); m != nil {
			flush()
			date, timeRange = m[1], ""
			continue
		}
		if m := timeHeading.FindStringSubmatch(line); m != nil {
			flush()
			timeRange = m[1]
			continue
		}
		buf = append(buf, raw)
	}
	flush()
	return chunks
}
