// Package chunk turns each evidence source kind into uniformly-shaped
// retrieval units (C3 in the design). Every chunker in this package is a
// pure function of its input: running it twice over identical content
// produces byte-identical chunk ids.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// Kind identifies which evidence source a Chunk was derived from.
type Kind string

const (
	KindEvidence  Kind = "evidence"
	KindTimeline  Kind = "timeline"
	KindDecisions Kind = "decisions"
	KindChat      Kind = "chat"
	KindCLI       Kind = "cli"
	KindCode      Kind = "code"
)

// Citation is the minimal provenance a formatter needs to point a user at
// the exact evidence a chunk came from.
type Citation struct {
	File     string `json:"file"`
	Range    string `json:"line_or_range,omitempty"`
	Date     string `json:"date,omitempty"`
	Kind     Kind   `json:"source_kind"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Meta carries the optional metadata fields named in the data model (§3).
type Meta struct {
	FilePath   string `json:"file_path,omitempty"`
	LineRange  string `json:"line_range,omitempty"`
	Date       string `json:"date,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Section    string `json:"section,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`
	FirstMs    int64  `json:"first_ms,omitempty"`
	LastMs     int64  `json:"last_ms,omitempty"`
}

// Chunk is the immutable retrieval unit produced by every chunker in this
// package. (id, content) is a pure function of content, source-kind, and
// range — see StableID.
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Kind     Kind     `json:"source_kind"`
	Meta     Meta     `json:"metadata"`
	Citation Citation `json:"citation"`
}

// StableID derives a chunk's identifier from its content, source-kind, and
// range string. The range string is caller-supplied and must fully capture
// whatever makes this chunk's position unique within its source (path and
// line bounds for code, thread id + index bounds for chat/CLI, heading path for
// timeline/evidence) so that re-running the chunker over identical input
// always yields the same id.
func StableID(content string, kind Kind, rangeKey string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(rangeKey))
	h.Write([]byte{0})
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:20]
}

// New constructs a Chunk, deriving its id from content+kind+range and
// filling in the citation from the metadata.
func New(content string, kind Kind, rangeKey string, meta Meta) Chunk {
	return Chunk{
		ID:      StableID(content, kind, rangeKey),
		Content: content,
		Kind:    kind,
		Meta:    meta,
		Citation: Citation{
			File:     meta.FilePath,
			Range:    meta.LineRange,
			Date:     meta.Date,
			Kind:     kind,
			ThreadID: meta.ThreadID,
		},
	}
}
