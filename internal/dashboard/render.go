package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// plainRenderer is forced to the NoTTY color profile so every style it
// produces degrades to plain text: dashboards must be byte-identical given
// identical inputs (§4.12), which rules out ANSI escapes that depend on the
// terminal this process happens to be attached to.
var plainRenderer = newPlainRenderer()

func newPlainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(colorprofile.NoTTY)
	return r
}

var (
	boxStyle = plainRenderer.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// RenderJournal renders one day's sessions as a narrative markdown journal
// (§4.12 "a per-day narrative journal").
func RenderJournal(day string, sessions []Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", day)
	for i, s := range sessions {
		start := time.UnixMilli(s.Start).UTC().Format("15:04")
		end := time.UnixMilli(s.End).UTC().Format("15:04")
		fmt.Fprintf(&b, "## Session %d — %s to %s\n\n", i+1, start, end)
		fmt.Fprintf(&b, "- %d file(s) touched: %s\n", len(s.Files), strings.Join(s.Files, ", "))
		fmt.Fprintf(&b, "- +%d / -%d lines\n", s.LinesAdded, s.LinesRemoved)
		if len(s.ChatThreads) > 0 {
			fmt.Fprintf(&b, "- chat threads: %s\n", strings.Join(s.ChatThreads, ", "))
		}
		for _, burst := range s.Bursts {
			fmt.Fprintf(&b, "  - %s burst at %s, %d events over %s\n",
				burst.Pattern.Type, time.UnixMilli(burst.T).UTC().Format("15:04:05"),
				burst.EventsCount, humanizeDuration(burst.DurationMs))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// humanizeDuration renders a millisecond duration as a short string.
// dustin/go-humanize's time helpers (Time, RelTime) measure against
// time.Now(), which would make dashboard output depend on when it's
// rendered rather than solely on its inputs (§4.12 "deterministic: same
// inputs yield byte-identical outputs"); a plain time.Duration round-trip
// has no such dependency.
func humanizeDuration(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).Round(time.Second).String()
}

// progressBar renders a fixed-width ASCII progress bar for fraction in
// [0,1].
func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// RenderDashboard renders an aggregated view across all sessions: ASCII
// boxes, progress bars, and a hot-files table (§4.12 "an aggregated
// dashboard with ASCII boxes, progress bars, and hot-file tables").
func RenderDashboard(grouped map[string][]Session, hotFiles []FileStat) string {
	days := SortedDays(grouped)

	totalSessions := 0
	totalAdded, totalRemoved := 0, 0
	for _, day := range days {
		for _, s := range grouped[day] {
			totalSessions++
			totalAdded += s.LinesAdded
			totalRemoved += s.LinesRemoved
		}
	}

	summary := fmt.Sprintf("Days tracked: %d\nSessions: %d\nLines: +%s / -%s",
		len(days), totalSessions, humanize.Comma(int64(totalAdded)), humanize.Comma(int64(totalRemoved)))

	var b strings.Builder
	b.WriteString("# Activity dashboard\n\n")
	b.WriteString("```\n")
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n```\n\n")

	b.WriteString("## Hot files\n\n")
	b.WriteString("| file | lines changed | share |\n|---|---|---|\n")
	maxChanged := 0
	for _, f := range hotFiles {
		if f.LinesChanged > maxChanged {
			maxChanged = f.LinesChanged
		}
	}
	for _, f := range hotFiles {
		share := 0.0
		if maxChanged > 0 {
			share = float64(f.LinesChanged) / float64(maxChanged)
		}
		fmt.Fprintf(&b, "| %s | %d | `%s` |\n", f.Path, f.LinesChanged, progressBar(share, 20))
	}
	b.WriteString("\n")

	b.WriteString("## By day\n\n")
	for _, day := range days {
		sessions := grouped[day]
		added, removed := 0, 0
		for _, s := range sessions {
			added += s.LinesAdded
			removed += s.LinesRemoved
		}
		fmt.Fprintf(&b, "- **%s** — %d session(s), +%d/-%d lines\n", day, len(sessions), added, removed)
	}

	return b.String()
}
