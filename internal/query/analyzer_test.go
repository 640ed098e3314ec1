package query

import (
	"testing"

	"github.com/soynido/rl4/internal/chunk"
)

func TestNormalize(t *testing.T) {
	got := normalize("  Why   Did   We   Pick   BM25?  ")
	want := "why did we pick bm25?"
	if got != want {
		t.Errorf("normalize() = %q, want %q", got, want)
	}
}

func TestDetectIntentStartsWith(t *testing.T) {
	cases := map[string]string{
		"why did we pick bm25":     "why",
		"how do we deploy this":    "how",
		"when was this decided":    "when",
		"who approved this change": "who",
		"list all the decisions":   "list",
		"diff between v1 and v2":   "diff",
		"what is the ranker":       "what",
		"tell me about the cache":  "general",
	}
	for q, want := range cases {
		intent, _ := detectIntent(normalize(q))
		if intent != want {
			t.Errorf("detectIntent(%q) = %q, want %q", q, intent, want)
		}
	}
}

func TestDetectIntentContainsFallback(t *testing.T) {
	intent, conf := detectIntent(normalize("tell me the rationale behind this"))
	if intent != "why" {
		t.Errorf("expected contains-match fallback to 'why', got %q", intent)
	}
	if conf != 0.6 {
		t.Errorf("expected contains confidence 0.6, got %v", conf)
	}
}

func TestExtractEntitiesFilesDatesTags(t *testing.T) {
	e := extractEntities("see main.go changed on 2026-07-30 tagged FIX related to MyHandler")
	if len(e.Files) != 1 || e.Files[0] != "main.go" {
		t.Errorf("files = %v, want [main.go]", e.Files)
	}
	if len(e.Dates) != 1 || e.Dates[0] != "2026-07-30" {
		t.Errorf("dates = %v, want [2026-07-30]", e.Dates)
	}
	foundTag, foundIdent := false, false
	for _, tag := range e.Tags {
		if tag == "FIX" {
			foundTag = true
		}
	}
	for _, id := range e.Identifiers {
		if id == "MyHandler" {
			foundIdent = true
		}
	}
	if !foundTag {
		t.Errorf("expected FIX tag, got %v", e.Tags)
	}
	if !foundIdent {
		t.Errorf("expected MyHandler identifier, got %v", e.Identifiers)
	}
}

func TestExpandSynonymsCapsAt20(t *testing.T) {
	base := make([]string, 25)
	for i := range base {
		base[i] = "bug"
	}
	expanded := expandSynonyms(base, nil)
	if len(expanded) > maxExpandedTerms {
		t.Errorf("expected at most %d expanded terms, got %d", maxExpandedTerms, len(expanded))
	}
}

func TestExpandSynonymsUnionsDictionary(t *testing.T) {
	expanded := expandSynonyms([]string{"fix", "bug"}, nil)
	has := func(term string) bool {
		for _, t := range expanded {
			if t == term {
				return true
			}
		}
		return false
	}
	if !has("fix") || !has("bug") {
		t.Fatalf("expected base terms to be retained, got %v", expanded)
	}
	if !has("patch") && !has("repair") && !has("resolve") {
		t.Errorf("expected at least one synonym of 'fix', got %v", expanded)
	}
}

func TestSourceBiasDefaultsToOne(t *testing.T) {
	if got := SourceBias("general", chunk.KindCode); got != 1.0 {
		t.Errorf("SourceBias(general, code) = %v, want 1.0", got)
	}
	if got := SourceBias("why", chunk.KindDecisions); got != 2.0 {
		t.Errorf("SourceBias(why, decisions) = %v, want 2.0", got)
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	a := Analyze("Why did we choose BM25 over embeddings in ranker.go?")
	if a.Intent != "why" {
		t.Errorf("intent = %q, want why", a.Intent)
	}
	if len(a.Files) != 1 || a.Files[0] != "ranker.go" {
		t.Errorf("files = %v, want [ranker.go]", a.Files)
	}
}
