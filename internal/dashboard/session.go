// Package dashboard implements the deterministic JSONL -> markdown
// rebuilders (C12): burst-to-session clustering, session enrichment, and
// two markdown renderers (a per-day narrative journal and an aggregated
// dashboard with ASCII boxes, progress bars, and hot-file tables).
package dashboard

import (
	"sort"
	"time"

	"github.com/soynido/rl4/internal/evidence"
)

// sessionGapThreshold is §4.12's session-clustering threshold: two bursts
// belong to the same session if separated by <= 30 minutes.
const sessionGapThreshold = 30 * 60 * 1000

// Session is a cluster of bursts close enough in time to represent one
// sitting at the keyboard (§4.12).
type Session struct {
	Bursts       []evidence.SessionBurst
	Start        int64
	End          int64
	Files        []string
	LinesAdded   int
	LinesRemoved int
	ChatThreads  []string
}

// ClusterSessions groups bursts into sessions: a new session starts
// whenever the gap since the previous burst's end exceeds 30 minutes
// (§4.12 "clustering bursts into sessions").
func ClusterSessions(bursts []evidence.SessionBurst) []Session {
	sorted := append([]evidence.SessionBurst(nil), bursts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })

	var sessions []Session
	currentIdx := -1
	for _, b := range sorted {
		burstEnd := b.T + b.DurationMs
		if currentIdx >= 0 && b.T-sessions[currentIdx].End <= sessionGapThreshold {
			sessions[currentIdx].Bursts = append(sessions[currentIdx].Bursts, b)
			if burstEnd > sessions[currentIdx].End {
				sessions[currentIdx].End = burstEnd
			}
			continue
		}
		sessions = append(sessions, Session{
			Bursts: []evidence.SessionBurst{b},
			Start:  b.T,
			End:    burstEnd,
		})
		currentIdx = len(sessions) - 1
	}
	for i := range sessions {
		sessions[i].Files = filesOf(sessions[i].Bursts)
	}
	return sessions
}

func filesOf(bursts []evidence.SessionBurst) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range bursts {
		for _, f := range b.Files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Enrich fills in a session's line counts (from activity events touching
// its files within its time range) and the chat threads whose time range
// overlaps the session's (§4.12 "enriching each session").
func Enrich(sess Session, activity []evidence.ActivityRecord, threads []evidence.ChatThread) Session {
	fileSet := map[string]bool{}
	for _, f := range sess.Files {
		fileSet[f] = true
	}
	for _, a := range activity {
		if a.T < sess.Start || a.T > sess.End || !fileSet[a.Path] {
			continue
		}
		sess.LinesAdded += a.LinesAdded
		sess.LinesRemoved += a.LinesRemoved
	}
	for _, th := range threads {
		if th.FirstMs <= sess.End && th.LastMs >= sess.Start {
			sess.ChatThreads = append(sess.ChatThreads, th.ThreadKey)
		}
	}
	sort.Strings(sess.ChatThreads)
	return sess
}

// GroupByDay groups sessions by their start time's calendar day in loc,
// keyed by "YYYY-MM-DD" (§4.12 "grouping everything by local calendar
// day"). Callers pass time.Local for host-facing output and a fixed
// location (e.g. time.UTC) for deterministic tests.
func GroupByDay(sessions []Session, loc *time.Location) map[string][]Session {
	out := map[string][]Session{}
	for _, s := range sessions {
		day := time.UnixMilli(s.Start).In(loc).Format("2006-01-02")
		out[day] = append(out[day], s)
	}
	return out
}

// SortedDays returns the days present in grouped, ascending.
func SortedDays(grouped map[string][]Session) []string {
	days := make([]string, 0, len(grouped))
	for d := range grouped {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// FileStat is one row of the hot-files table (§4.12).
type FileStat struct {
	Path         string
	LinesChanged int
}

// HotFiles ranks files by total lines changed across sessions, breaking
// ties lexicographically for deterministic output.
func HotFiles(sessions []Session, activity []evidence.ActivityRecord) []FileStat {
	totals := map[string]int{}
	for _, a := range activity {
		totals[a.Path] += a.LinesAdded + a.LinesRemoved
	}
	stats := make([]FileStat, 0, len(totals))
	for path, n := range totals {
		stats = append(stats, FileStat{Path: path, LinesChanged: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].LinesChanged != stats[j].LinesChanged {
			return stats[i].LinesChanged > stats[j].LinesChanged
		}
		return stats[i].Path < stats[j].Path
	})
	return stats
}
