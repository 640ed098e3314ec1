package chunk

import (
	"regexp"
	"strings"
)

// boxBorder matches a box-drawing border line such as
// "┌──────────────────────────────┐" or "╠══════════════╣".
var boxBorder = regexp.MustCompile(`^[┌└├┤╔╚╠╣┏┗┣┫╭╮╰╯─━═│┃|+\-\s]{4,}$`)

// boxTitle matches a box-drawing title line such as "│ ACTIVE FILES │".
var boxTitle = regexp.MustCompile(`^[│┃|]\s*(.+?)\s*[│┃|]\s*$`)

// Evidence splits the evidence.md dashboard into one chunk per
// box-drawing-delimited section (§4.3: "Evidence dashboard").
func Evidence(path, content string) []Chunk {
	lines := strings.Split(content, "\n")

	type section struct {
		name  string
		start int
	}

	var sections []section
	var cur *section
	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")
		if boxBorder.MatchString(line) && i+2 < len(lines) {
			if m := boxTitle.FindStringSubmatch(strings.TrimRight(lines[i+1], "\r")); m != nil {
				title := strings.TrimSpace(m[1])
				if boxBorder.MatchString(strings.TrimRight(lines[i+2], "\r")) {
					if cur != nil {
						sections = append(sections, *cur)
					}
					cur = &section{name: title, start: i + 3}
					i += 3
					continue
				}
			}
		}
		i++
	}
	if cur != nil {
		sections = append(sections, *cur)
	} else if len(lines) > 0 {
		// No box-drawing headers found at all: treat the whole file as one
		// section so the dashboard is still retrievable.
		sections = append(sections, section{name: "evidence", start: 0})
	}

	var chunks []Chunk
	for idx, sec := range sections {
		end := len(lines)
		if idx+1 < len(sections) {
			// End where the next section's header block begins, minus its
			// own 3 header lines.
			end = sections[idx+1].start - 3
		}
		if end < sec.start {
			end = sec.start
		}
		body := strings.TrimSpace(strings.Join(lines[sec.start:end], "\n"))
		if body == "" && sec.name == "" {
			continue
		}
		meta := Meta{FilePath: path, Section: sec.name}
		chunks = append(chunks, New(body, KindEvidence, path+"#"+sec.name, meta))
	}
	return chunks
}
