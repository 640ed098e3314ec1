package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

// semanticSplitPoints covers function/class/method declarations across the
// common languages this engine expects to see in a source tree.
var semanticSplitPoints = []*regexp.Regexp{
	regexp.MustCompile(`^\s*func\s+`),                                   // Go
	regexp.MustCompile(`^\s*(export\s+)?(async\s+)?function\s+`),        // JS/TS
	regexp.MustCompile(`^\s*(export\s+)?(default\s+)?class\s+`),         // JS/TS/Python
	regexp.MustCompile(`^\s*def\s+`),                                    // Python
	regexp.MustCompile(`^\s*(public|private|protected)\s+.*\(.*\)\s*\{?$`), // Java/C#
	regexp.MustCompile(`^\s*fn\s+`),                                     // Rust
	regexp.MustCompile(`^\s*(pub\s+)?fn\s+`),                            // Rust (pub)
	regexp.MustCompile(`^\s*func\s*\(`),                                 // Go method
}

// CodeConfig tunes the Code chunker.
type CodeConfig struct {
	SmallFileLines int // files at or under this size become one chunk
	WindowLines    int // fallback fixed-window size
	OverlapLines   int // overlap applied on each side of every cut
}

// Code produces one chunk for small files (≤ SmallFileLines) with a
// one-line header, or cuts larger files at semantic split-points — subject
// to a minimum distance of half the target window since the last split —
// falling back to fixed windows with overlap when no split points qualify.
// Every cut inherits OverlapLines of overlap on each side, per §4.3 "Code".
func Code(path, lang, content string, cfg CodeConfig) []Chunk {
	if cfg.SmallFileLines <= 0 {
		cfg.SmallFileLines = 80
	}
	if cfg.WindowLines <= 0 {
		cfg.WindowLines = 80
	}
	if cfg.OverlapLines <= 0 {
		cfg.OverlapLines = 15
	}

	lines := strings.Split(content, "\n")
	if len(lines) <= cfg.SmallFileLines {
		header := fmt.Sprintf("// file: %s (%s, %d)", path, lang, len(lines))
		body := header + "\n" + content
		meta := Meta{FilePath: path, LineRange: fmt.Sprintf("1-%d", len(lines))}
		return []Chunk{New(body, KindCode, fmt.Sprintf("%s#0-%d", path, len(lines)), meta)}
	}

	boundaries := semanticBoundaries(lines, cfg.WindowLines/2)
	if len(boundaries) == 0 {
		return fixedWindows(path, lines, cfg.WindowLines, cfg.OverlapLines)
	}

	var chunks []Chunk
	bounds := append([]int{0}, boundaries...)
	bounds = append(bounds, len(lines))
	for i := 0; i < len(bounds)-1; i++ {
		start, end := bounds[i], bounds[i+1]
		chunkStart := clampInt(start-cfg.OverlapLines, 0, len(lines))
		chunkEnd := clampInt(end+cfg.OverlapLines, 0, len(lines))
		if chunkEnd <= chunkStart {
			continue
		}
		body := strings.Join(lines[chunkStart:chunkEnd], "\n")
		meta := Meta{FilePath: path, LineRange: fmt.Sprintf("%d-%d", chunkStart+1, chunkEnd)}
		rangeKey := fmt.Sprintf("%s#%d-%d", path, chunkStart, chunkEnd)
		chunks = append(chunks, New(body, KindCode, rangeKey, meta))
	}
	return chunks
}

// semanticBoundaries scans lines for semantic split-point matches, keeping
// only those at least minDistance lines after the previous accepted
// boundary.
func semanticBoundaries(lines []string, minDistance int) []int {
	var boundaries []int
	last := 0
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if i-last < minDistance {
			continue
		}
		for _, re := range semanticSplitPoints {
			if re.MatchString(line) {
				boundaries = append(boundaries, i)
				last = i
				break
			}
		}
	}
	return boundaries
}

// fixedWindows produces fixed windowLines windows, each widened by overlap
// lines on each side, used when no semantic split-point qualifies.
func fixedWindows(path string, lines []string, windowLines, overlap int) []Chunk {
	var chunks []Chunk
	for start := 0; start < len(lines); start += windowLines {
		end := clampInt(start+windowLines, 0, len(lines))
		chunkStart := clampInt(start-overlap, 0, len(lines))
		chunkEnd := clampInt(end+overlap, 0, len(lines))
		body := strings.Join(lines[chunkStart:chunkEnd], "\n")
		meta := Meta{FilePath: path, LineRange: fmt.Sprintf("%d-%d", chunkStart+1, chunkEnd)}
		rangeKey := fmt.Sprintf("%s#%d-%d", path, chunkStart, chunkEnd)
		chunks = append(chunks, New(body, KindCode, rangeKey, meta))
	}
	return chunks
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
