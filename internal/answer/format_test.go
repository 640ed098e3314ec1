package answer

import (
	"strings"
	"testing"

	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/query"
	"github.com/soynido/rl4/internal/rank"
)

func mkScored(file, date, content string, tier rank.Tier, relevance float64) rank.ScoredChunk {
	c := chunk.New(content, chunk.KindCode, file+"#"+date, chunk.Meta{FilePath: file, Date: date})
	return rank.ScoredChunk{Chunk: c, Score: relevance, Relevance: relevance, Tier: tier}
}

func TestExtractSnippetRespectsBudget(t *testing.T) {
	content := strings.Repeat("the quick brown fox jumps over the lazy dog near the river bank today\n", 30)
	snippet := extractSnippet(content, []string{"fox", "river"}, 300)
	if len(snippet) > 320 {
		t.Errorf("snippet exceeds budget: %d bytes", len(snippet))
	}
	if !strings.Contains(snippet, "fox") {
		t.Errorf("expected snippet to contain a matched term, got %q", snippet)
	}
}

func TestExtractSnippetFallsBackToTruncationWithoutHits(t *testing.T) {
	content := "nothing here matches anything in particular at all"
	snippet := extractSnippet(content, []string{"zzz"}, 20)
	if snippet == "" {
		t.Fatal("expected a non-empty fallback snippet")
	}
}

func TestFormatDropsLowTierAtHighConfidence(t *testing.T) {
	chunks := []rank.ScoredChunk{
		mkScored("a.go", "2026-07-20", "high tier content about auth flows", rank.TierHigh, 0.9),
		mkScored("b.go", "2026-07-19", "low tier content mostly irrelevant", rank.TierLow, 0.1),
	}
	result := rank.Result{Chunks: chunks, Confidence: 0.85}
	analysis := query.Analyze("why does auth fail")

	bundle := Format(result, analysis, "why does auth fail")
	if bundle.DroppedLowTier != 1 {
		t.Fatalf("expected 1 dropped low-tier source, got %d", bundle.DroppedLowTier)
	}
	if len(bundle.Sources) != 1 {
		t.Fatalf("expected 1 remaining source, got %d", len(bundle.Sources))
	}
}

func TestFormatKeepsLowTierAtLowConfidence(t *testing.T) {
	chunks := []rank.ScoredChunk{
		mkScored("a.go", "2026-07-20", "some content", rank.TierLow, 0.2),
	}
	result := rank.Result{Chunks: chunks, Confidence: 0.2}
	analysis := query.Analyze("what changed")

	bundle := Format(result, analysis, "what changed")
	if bundle.DroppedLowTier != 0 {
		t.Fatalf("expected no dropped sources at low confidence, got %d", bundle.DroppedLowTier)
	}
	if len(bundle.Sources) != 1 {
		t.Fatalf("expected 1 source retained, got %d", len(bundle.Sources))
	}
}

func TestFormatHeaderCountsTiers(t *testing.T) {
	chunks := []rank.ScoredChunk{
		mkScored("a.go", "2026-07-20", "x", rank.TierHigh, 0.9),
		mkScored("b.go", "2026-07-20", "y", rank.TierHigh, 0.8),
		mkScored("c.go", "2026-07-20", "z", rank.TierMedium, 0.5),
	}
	result := rank.Result{Chunks: chunks, Confidence: 0.6}
	analysis := query.Analyze("how does ranking work")

	bundle := Format(result, analysis, "how does ranking work")
	if !strings.Contains(bundle.Header, "2 high") || !strings.Contains(bundle.Header, "1 medium") {
		t.Errorf("header missing tier counts: %q", bundle.Header)
	}
}

func TestFormatSynthesisDirectiveByIntent(t *testing.T) {
	result := rank.Result{Chunks: nil, Confidence: 0}
	analysis := query.Analysis{Intent: "why"}
	bundle := Format(result, analysis, "why")
	if bundle.SynthesisDirective != "context → decision → rationale" {
		t.Errorf("unexpected directive: %q", bundle.SynthesisDirective)
	}
}

func TestFormatUnknownIntentFallsBackToGeneral(t *testing.T) {
	result := rank.Result{Chunks: nil, Confidence: 0}
	analysis := query.Analysis{Intent: "mystery"}
	bundle := Format(result, analysis, "mystery")
	if bundle.SynthesisDirective != synthesisDirectives["general"] {
		t.Errorf("expected general fallback, got %q", bundle.SynthesisDirective)
	}
}

func TestFormatOutputRespectsHardCap(t *testing.T) {
	var chunks []rank.ScoredChunk
	bigContent := strings.Repeat("detailed evidence about the authentication subsystem refactor ", 50)
	for i := 0; i < 40; i++ {
		chunks = append(chunks, mkScored("file.go", "2026-07-20", bigContent, rank.TierHigh, 0.9))
	}
	result := rank.Result{Chunks: chunks, Confidence: 0.5}
	analysis := query.Analyze("how was this refactored")

	bundle := Format(result, analysis, "how was this refactored")
	if len(bundle.Text) > maxBundleBytes {
		t.Fatalf("output exceeds hard cap: %d bytes", len(bundle.Text))
	}
}

func TestCitationLineMatchesGuardrailPattern(t *testing.T) {
	s := Source{Index: 1, File: "internal/rank/engine.go", Range: "L10-20", Date: "2026-07-20", Tier: rank.TierHigh}
	entry := formatSourceEntry(s)
	if !strings.Contains(entry, "L10-20") || !strings.Contains(entry, "| 2026-07-20") {
		t.Errorf("citation entry missing guardrail-matchable markers: %q", entry)
	}
}

func TestRelatedQuestionsCappedAndDeduplicated(t *testing.T) {
	chunks := []rank.ScoredChunk{
		mkScored("a.go", "2026-07-20", "alpha beta gamma", rank.TierHigh, 0.9),
		mkScored("a.go", "2026-07-19", "alpha beta gamma", rank.TierHigh, 0.8),
	}
	analysis := query.Analysis{Intent: "why", Tags: []string{"FIX"}}
	got := RelatedQuestions(chunks, analysis)
	if len(got) > maxRelatedQuestions {
		t.Fatalf("expected at most %d related questions, got %d", maxRelatedQuestions, len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q] {
			t.Errorf("duplicate related question: %q", q)
		}
		seen[q] = true
	}
}

func TestRelatedQuestionsSuggestMissingKinds(t *testing.T) {
	chunks := []rank.ScoredChunk{
		mkScored("a.go", "2026-07-20", "alpha", rank.TierHigh, 0.9),
	}
	analysis := query.Analysis{Intent: "general"}
	got := RelatedQuestions(chunks, analysis)
	found := false
	for _, q := range got {
		if strings.Contains(q, "evidence history") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a cross-exploration question for a missing source kind, got %v", got)
	}
}
