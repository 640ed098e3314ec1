package dashboard

import (
	"testing"
	"time"

	"github.com/soynido/rl4/internal/evidence"
)

func TestClusterSessionsSplitsOnGap(t *testing.T) {
	bursts := []evidence.SessionBurst{
		{BurstID: "a", T: 0, DurationMs: 60_000, Files: []string{"x.go"}, EventsCount: 3},
		{BurstID: "b", T: 5 * 60_000, DurationMs: 60_000, Files: []string{"x.go"}, EventsCount: 2},
		{BurstID: "c", T: 60 * 60_000, DurationMs: 60_000, Files: []string{"y.go"}, EventsCount: 1},
	}
	sessions := ClusterSessions(bursts)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if len(sessions[0].Bursts) != 2 {
		t.Errorf("expected first session to merge the two close bursts, got %d bursts", len(sessions[0].Bursts))
	}
	if len(sessions[1].Bursts) != 1 {
		t.Errorf("expected second session to be the isolated burst, got %d bursts", len(sessions[1].Bursts))
	}
}

func TestClusterSessionsPreservesOrderAcrossManySessions(t *testing.T) {
	var bursts []evidence.SessionBurst
	for i := 0; i < 5; i++ {
		bursts = append(bursts, evidence.SessionBurst{
			BurstID: string(rune('a' + i)), T: int64(i) * 2 * 60 * 60_000, DurationMs: 1000, Files: []string{"f.go"},
		})
	}
	sessions := ClusterSessions(bursts)
	if len(sessions) != 5 {
		t.Fatalf("expected 5 isolated sessions (2h apart each), got %d", len(sessions))
	}
}

func TestEnrichAccumulatesLinesWithinRange(t *testing.T) {
	sess := Session{Start: 0, End: 10_000, Files: []string{"a.go"}}
	activity := []evidence.ActivityRecord{
		{T: 1000, Path: "a.go", LinesAdded: 5, LinesRemoved: 1},
		{T: 20_000, Path: "a.go", LinesAdded: 100, LinesRemoved: 100}, // outside range
		{T: 2000, Path: "b.go", LinesAdded: 50, LinesRemoved: 50},     // untouched file
	}
	enriched := Enrich(sess, activity, nil)
	if enriched.LinesAdded != 5 || enriched.LinesRemoved != 1 {
		t.Errorf("expected only the in-range same-file event to count, got +%d/-%d", enriched.LinesAdded, enriched.LinesRemoved)
	}
}

func TestEnrichMatchesOverlappingChatThreads(t *testing.T) {
	sess := Session{Start: 1000, End: 2000, Files: []string{"a.go"}}
	threads := []evidence.ChatThread{
		{ThreadKey: "in-range", FirstMs: 500, LastMs: 1500},
		{ThreadKey: "out-of-range", FirstMs: 3000, LastMs: 4000},
	}
	enriched := Enrich(sess, nil, threads)
	if len(enriched.ChatThreads) != 1 || enriched.ChatThreads[0] != "in-range" {
		t.Errorf("expected only the overlapping thread, got %v", enriched.ChatThreads)
	}
}

func TestGroupByDaySeparatesCalendarDays(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC).UnixMilli()
	sessions := []Session{{Start: day1}, {Start: day2}, {Start: day1}}
	grouped := GroupByDay(sessions, time.UTC)
	if len(grouped["2026-01-01"]) != 2 || len(grouped["2026-01-02"]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}
}

func TestHotFilesRanksDescendingWithLexicalTieBreak(t *testing.T) {
	activity := []evidence.ActivityRecord{
		{Path: "b.go", LinesAdded: 10},
		{Path: "a.go", LinesAdded: 10},
		{Path: "c.go", LinesAdded: 20},
	}
	stats := HotFiles(nil, activity)
	if len(stats) != 3 || stats[0].Path != "c.go" {
		t.Fatalf("expected c.go first (highest count), got %v", stats)
	}
	if stats[1].Path != "a.go" || stats[2].Path != "b.go" {
		t.Errorf("expected a.go before b.go on a tie, got %v then %v", stats[1].Path, stats[2].Path)
	}
}

func TestRenderJournalIsDeterministic(t *testing.T) {
	sessions := []Session{
		{
			Start: 0, End: 120_000, Files: []string{"a.go"}, LinesAdded: 3, LinesRemoved: 1,
			Bursts: []evidence.SessionBurst{{Pattern: evidence.BurstPattern{Type: "feature"}, T: 0, DurationMs: 60_000, EventsCount: 4}},
		},
	}
	out1 := RenderJournal("2026-01-01", sessions)
	out2 := RenderJournal("2026-01-01", sessions)
	if out1 != out2 {
		t.Fatal("expected RenderJournal to be a pure function of its inputs")
	}
	if out1 == "" {
		t.Fatal("expected non-empty output")
	}
}

func TestRenderDashboardIsDeterministic(t *testing.T) {
	grouped := map[string][]Session{
		"2026-01-01": {{Start: 0, LinesAdded: 10, LinesRemoved: 2}},
	}
	hot := []FileStat{{Path: "a.go", LinesChanged: 12}}
	out1 := RenderDashboard(grouped, hot)
	out2 := RenderDashboard(grouped, hot)
	if out1 != out2 {
		t.Fatal("expected RenderDashboard to be a pure function of its inputs")
	}
}
