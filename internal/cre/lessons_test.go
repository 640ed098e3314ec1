package cre

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soynido/rl4/internal/blob"
	"github.com/soynido/rl4/internal/evidence"
	"github.com/soynido/rl4/internal/graph"
)

func writeSkillsFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "skills.mdc"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadAvoidLessonsSkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	writeSkillsFile(t, dir, "# a header\n\nnever hardcode credentials\n  \nalways validate webhook signatures\n")

	lessons := loadAvoidLessons(dir, 1000)
	if len(lessons) != 2 {
		t.Fatalf("expected 2 AVOID lessons, got %d", len(lessons))
	}
	for _, l := range lessons {
		if l.Type != LessonAvoid {
			t.Fatalf("expected LessonAvoid, got %s", l.Type)
		}
	}
	if lessons[0].Text != "never hardcode credentials" {
		t.Fatalf("unexpected text: %q", lessons[0].Text)
	}
}

func TestLoadAvoidLessonsMissingFileReturnsNil(t *testing.T) {
	lessons := loadAvoidLessons(t.TempDir(), 1000)
	if lessons != nil {
		t.Fatalf("expected nil for a missing skills.mdc, got %v", lessons)
	}
}

func TestLoadDecisionLessonsFormatsChosenOption(t *testing.T) {
	decisions := []evidence.DecisionRecord{
		{ID: "dec-1", IntentText: "pick a cache layer", ChosenOption: "redis"},
	}
	lessons := loadDecisionLessons(decisions, 500)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(lessons))
	}
	if lessons[0].EvidenceRefs[0] != "dec-1" {
		t.Fatalf("expected evidence ref dec-1, got %v", lessons[0].EvidenceRefs)
	}
}

func TestLoadReversalLessonsOnlyReversedFastWithTargetFile(t *testing.T) {
	records := []Record{
		{ID: "r1", Outcome: OutcomeReversedFast, TargetFile: "a.go", Timestamp: 10, ResolvedAt: 20},
		{ID: "r2", Outcome: OutcomeAccepted, TargetFile: "b.go", Timestamp: 10, ResolvedAt: 20},
		{ID: "r3", Outcome: OutcomeReversedFast, TargetFile: "", Timestamp: 10, ResolvedAt: 20},
	}
	lessons := loadReversalLessons(records)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 reversal lesson, got %d", len(lessons))
	}
	if lessons[0].OriginFile != "a.go" {
		t.Fatalf("expected origin file a.go, got %s", lessons[0].OriginFile)
	}
}

func TestLoadCouplingLessonsRespectsMinWeight(t *testing.T) {
	b := graph.NewBuilder()
	// five co-modifications -> weight 5*0.4/5 capped logic; use many calls
	// to clear couplingMinWeight comfortably.
	for i := 0; i < 20; i++ {
		b.AddCoModification("a.go", "b.go")
	}
	g := b.Build()

	lessons := loadCouplingLessons(g, 1000)
	if len(lessons) == 0 {
		t.Fatal("expected at least one coupling lesson for a strongly coupled pair")
	}
	var sawAOrigin, sawBOrigin bool
	for _, l := range lessons {
		if l.OriginFile == "a.go" {
			sawAOrigin = true
		}
		if l.OriginFile == "b.go" {
			sawBOrigin = true
		}
	}
	if !sawAOrigin || !sawBOrigin {
		t.Fatal("expected a coupling lesson from each file as origin")
	}
}

func TestLoadCouplingLessonsNilGraph(t *testing.T) {
	if got := loadCouplingLessons(nil, 1000); got != nil {
		t.Fatalf("expected nil for a nil graph, got %v", got)
	}
}

func TestLoadHotspotLessonsRequiresMinVersions(t *testing.T) {
	dir := t.TempDir()
	store, err := blob.Open(dir)
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	for i := 0; i < hotspotMinVersions; i++ {
		content := []byte{byte(i), byte(i + 1)}
		if _, err := store.RecordVersion("hot.go", content, time.Unix(int64(i), 0), 1, 0); err != nil {
			t.Fatalf("RecordVersion: %v", err)
		}
	}

	lessons := loadHotspotLessons(store, 2000)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 hotspot lesson, got %d", len(lessons))
	}
	if lessons[0].OriginFile != "hot.go" {
		t.Fatalf("expected origin hot.go, got %s", lessons[0].OriginFile)
	}
}

func TestLoadHotspotLessonsNilStore(t *testing.T) {
	if got := loadHotspotLessons(nil, 1000); got != nil {
		t.Fatalf("expected nil for a nil store, got %v", got)
	}
}

func TestLoadChatLessonsRequiresCountAndTopics(t *testing.T) {
	threads := []evidence.ChatThread{
		{ThreadKey: "t1", Title: "auth redesign", Count: 5, Topics: []string{"jwt", "sessions"}, FirstMs: 1, LastMs: 2},
		{ThreadKey: "t2", Title: "too short", Count: 1, Topics: []string{"x"}},
		{ThreadKey: "t3", Title: "no topics", Count: 10},
	}
	lessons := loadChatLessons(threads)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 chat lesson, got %d", len(lessons))
	}
	if lessons[0].EvidenceRefs[0] != "t1" {
		t.Fatalf("expected evidence ref t1, got %v", lessons[0].EvidenceRefs)
	}
}

func TestDedupeLessonsMergesIdenticalTextAndUnionsRefs(t *testing.T) {
	a := NewLesson(LessonAvoid, "", "never hardcode credentials", []string{"src-a"}, 100, 200)
	b := NewLesson(LessonAvoid, "", "never hardcode credentials", []string{"src-b"}, 50, 300)

	out := dedupeLessons([]Lesson{a, b})
	if len(out) != 1 {
		t.Fatalf("expected lessons with identical id to merge into 1, got %d", len(out))
	}
	merged := out[0]
	if merged.FirstSeen != 50 || merged.LastSeen != 300 {
		t.Fatalf("expected merged range [50,300], got [%d,%d]", merged.FirstSeen, merged.LastSeen)
	}
	if len(merged.EvidenceRefs) != 2 {
		t.Fatalf("expected union of 2 evidence refs, got %v", merged.EvidenceRefs)
	}
}

func TestDedupeLessonsOutputIsSortedByID(t *testing.T) {
	a := NewLesson(LessonAvoid, "", "zzz last alphabetically", nil, 1, 1)
	b := NewLesson(LessonAvoid, "", "aaa first alphabetically", nil, 1, 1)

	out := dedupeLessons([]Lesson{a, b})
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct lessons, got %d", len(out))
	}
	if out[0].ID > out[1].ID {
		t.Fatalf("expected lessons sorted by id, got %q before %q", out[0].ID, out[1].ID)
	}
}

func TestLoadLessonsAssemblesAllSources(t *testing.T) {
	dir := t.TempDir()
	writeSkillsFile(t, dir, "avoid global mutable state\n")

	b := graph.NewBuilder()
	for i := 0; i < 20; i++ {
		b.AddCoModification("x.go", "y.go")
	}
	g := b.Build()

	store, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	for i := 0; i < hotspotMinVersions; i++ {
		if _, err := store.RecordVersion("hot.go", []byte{byte(i)}, time.Unix(int64(i), 0), 1, 0); err != nil {
			t.Fatalf("RecordVersion: %v", err)
		}
	}

	records := []Record{
		{ID: "r1", Outcome: OutcomeReversedFast, TargetFile: "x.go", Timestamp: 10, ResolvedAt: 20},
	}
	decisions := []evidence.DecisionRecord{
		{ID: "dec-1", IntentText: "pick a queue", ChosenOption: "nats"},
	}
	threads := []evidence.ChatThread{
		{ThreadKey: "t1", Title: "queueing", Count: 4, Topics: []string{"nats"}, FirstMs: 1, LastMs: 2},
	}

	lessons := LoadLessons(dir, g, store, records, decisions, threads, 1000)

	seen := map[LessonType]bool{}
	for _, l := range lessons {
		seen[l.Type] = true
	}
	for _, want := range []LessonType{LessonAvoid, LessonDecision, LessonReversal, LessonCoupling, LessonHotspot, LessonChat} {
		if !seen[want] {
			t.Errorf("expected at least one lesson of type %s", want)
		}
	}
}
