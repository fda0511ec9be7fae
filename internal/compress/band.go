package compress

import (
	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/tokencount"
)

// Band tags a positional range of messages with a compression level.
// Ranges are half-open [StartPercent, EndPercent) (spec.md §9 open
// question, resolved here; see DESIGN.md).
type Band struct {
	StartPercent int
	EndPercent   int
	Level        session.CompressionLevel
}

// SelectablePositions returns the entry indices of every non-meta
// user/assistant entry, in session order. SelectTasks and Run (when it
// reintegrates results) derive this list the same way so a task's MessageIndex
// (its rank in this list) always maps back to the same entry.
func SelectablePositions(sess *session.CanonicalSession) []int {
	var positions []int
	for i, e := range sess.Entries {
		if e.IsMeta {
			continue
		}
		if e.Kind != session.KindUser && e.Kind != session.KindAssistant {
			continue
		}
		positions = append(positions, i)
	}
	return positions
}

func bandFor(bands []Band, percent float64) (Band, bool) {
	for _, b := range bands {
		if percent >= float64(b.StartPercent) && percent < float64(b.EndPercent) {
			return b, true
		}
	}
	return Band{}, false
}

// SelectTasks builds one CompressionTask per selected message: a message
// falls in a band if its positional percentage lands in [start,end), and
// its estimated token count is at least minTokens (spec.md §4.2). It also
// returns the count of messages that landed in a band but were skipped for
// being under minTokens, so callers can fold that into CompressionStats
// without re-walking the session.
func SelectTasks(sess *session.CanonicalSession, bands []Band, minTokens int) (tasks []session.CompressionTask, skipped int) {
	positions := SelectablePositions(sess)
	n := len(positions)
	if n == 0 {
		return nil, 0
	}

	for rank, entryIdx := range positions {
		percent := float64(rank) / float64(n) * 100
		band, ok := bandFor(bands, percent)
		if !ok {
			continue
		}

		e := sess.Entries[entryIdx]
		text := entryText(e)
		estTokens := tokencount.Estimate(text)
		if estTokens < minTokens {
			skipped++
			continue
		}

		tasks = append(tasks, session.CompressionTask{
			MessageIndex:    rank,
			EntryType:       string(e.Kind),
			OriginalContent: text,
			Level:           band.Level,
			EstimatedTokens: estTokens,
			Status:          session.TaskPending,
		})
	}
	return tasks, skipped
}

// entryText extracts the textual content a task compresses: the plain
// string content, or the concatenated text blocks (thinking and tool
// blocks are never part of a compression task's text).
func entryText(e session.Entry) string {
	if e.Message == nil {
		return ""
	}
	if e.Message.IsString() {
		return e.Message.ContentStr
	}
	var out string
	for _, b := range e.Message.Blocks {
		if b.Kind == session.BlockText {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}
