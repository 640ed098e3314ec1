package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soynido/rl4/internal/evidence"
)

// ChatConfig tunes the byte-budget accumulator used by Chat.
type ChatConfig struct {
	ByteBudget int // flush when the next message would exceed this, default 4096
	MessageCap int // flush when this many messages have accumulated, default 40
}

// Chat groups messages by thread id, then flushes into chunks using a
// byte-budget accumulator per §4.3 "Chat": flush when the next message would
// push the running byte-count over the budget, or when the per-chunk
// message cap is reached. Each chunk records the first and last timestamp
// of its window.
func Chat(path string, messages []evidence.ChatMessage, cfg ChatConfig) []Chunk {
	if cfg.ByteBudget <= 0 {
		cfg.ByteBudget = 4096
	}
	if cfg.MessageCap <= 0 {
		cfg.MessageCap = 40
	}

	byThread := make(map[string][]evidence.ChatMessage)
	for _, m := range messages {
		byThread[m.ThreadID] = append(byThread[m.ThreadID], m)
	}

	threadIDs := make([]string, 0, len(byThread))
	for id := range byThread {
		threadIDs = append(threadIDs, id)
	}
	sort.Strings(threadIDs)

	var chunks []Chunk
	for _, tid := range threadIDs {
		msgs := byThread[tid]
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })

		var window []evidence.ChatMessage
		var windowBytes int
		windowStart := 0

		flush := func(endIdx int) {
			if len(window) == 0 {
				return
			}
			var b strings.Builder
			for _, m := range window {
				fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			}
			first, last := window[0].Timestamp, window[len(window)-1].Timestamp
			rangeKey := fmt.Sprintf("%s#%d-%d", tid, windowStart, endIdx)
			meta := Meta{
				FilePath: path, ThreadID: tid,
				FirstMs: first, LastMs: last,
			}
			chunks = append(chunks, New(strings.TrimSpace(b.String()), KindChat, rangeKey, meta))
			window = nil
			windowBytes = 0
			windowStart = endIdx
		}

		for i, m := range msgs {
			line := len(m.Role) + len(m.Content) + 2
			if len(window) > 0 && (windowBytes+line > cfg.ByteBudget || len(window) >= cfg.MessageCap) {
				flush(i)
			}
			window = append(window, m)
			windowBytes += line
		}
		flush(len(msgs))
	}
	return chunks
}
