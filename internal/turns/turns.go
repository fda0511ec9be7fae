// Package turns implements the C5 turn identifier and C6 turn analyzer:
// segmenting a canonical session's entries into turns, and computing
// per-turn cumulative token mass by semantic bucket.
//
// The straightforward index-walking style here follows the teacher's
// plain iterative loops in internal/sessions/manager.go rather than any
// particular retrieved turn-segmentation code -- no example repo
// implements this kind of turn boundary detection, so the shape is
// original but kept in the teacher's unadorned loop-and-append idiom.
package turns

import (
	"strings"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/tokencount"
)

// Segment splits a session's entries into turns. A turn begins at a
// non-meta user entry whose first content block is not a tool_result,
// and ends immediately before the next such boundary (spec.md §3).
func Segment(sess *session.CanonicalSession) []session.Turn {
	var turnStarts []int
	for i, e := range sess.Entries {
		if isTurnBoundary(e) {
			turnStarts = append(turnStarts, i)
		}
	}

	turns := make([]session.Turn, 0, len(turnStarts))
	for i, start := range turnStarts {
		end := len(sess.Entries) - 1
		if i+1 < len(turnStarts) {
			end = turnStarts[i+1] - 1
		}
		turns = append(turns, session.Turn{StartIndex: start, EndIndex: end})
	}
	return turns
}

func isTurnBoundary(e session.Entry) bool {
	if e.Kind != session.KindUser || e.IsMeta {
		return false
	}
	if e.Message == nil {
		return false
	}
	if e.Message.IsString() {
		return true
	}
	if len(e.Message.Blocks) == 0 {
		return true
	}
	return e.Message.Blocks[0].Kind != session.BlockToolResult
}

// Cumulative returns, for every turn index 0..len(turns)-1, the
// cumulative TokensByType from turn 0 through that turn inclusive
// (spec.md §4.4, invariant 1).
func Cumulative(sess *session.CanonicalSession, allTurns []session.Turn) []session.TokensByType {
	result := make([]session.TokensByType, len(allTurns))
	running := session.TokensByType{}
	for i, t := range allTurns {
		running = running.Add(turnTokens(sess, t))
		result[i] = running
	}
	return result
}

func turnTokens(sess *session.CanonicalSession, t session.Turn) session.TokensByType {
	var out session.TokensByType
	for idx := t.StartIndex; idx <= t.EndIndex && idx < len(sess.Entries); idx++ {
		e := sess.Entries[idx]
		if skipForAccounting(e) {
			continue
		}
		entryTokens(e, &out)
	}
	out.Total = out.User + out.Assistant + out.Thinking + out.Tool
	return out
}

func skipForAccounting(e session.Entry) bool {
	switch e.Kind {
	case session.KindSummary, session.KindQueueOperation, session.KindFileHistorySnapshot, session.KindMeta:
		return true
	}
	return e.IsMeta
}

func entryTokens(e session.Entry, out *session.TokensByType) {
	if e.Message == nil {
		return
	}
	if e.Message.IsString() {
		n := tokencount.Estimate(e.Message.ContentStr)
		addToBucket(out, e.Kind, n)
		return
	}
	for _, b := range e.Message.Blocks {
		switch b.Kind {
		case session.BlockThinking:
			out.Thinking += tokencount.Estimate(b.Thinking)
		case session.BlockToolUse, session.BlockToolResult:
			out.Tool += tokencount.Estimate(blockText(b))
		case session.BlockText:
			addToBucket(out, e.Kind, tokencount.Estimate(b.Text))
		}
	}
}

func addToBucket(out *session.TokensByType, kind session.EntryKind, n int) {
	switch kind {
	case session.KindUser:
		out.User += n
	case session.KindAssistant:
		out.Assistant += n
	}
}

func blockText(b session.ContentBlock) string {
	if b.Kind == session.BlockToolUse {
		return string(b.ToolInput)
	}
	return string(b.ToolResult)
}

// ExtractContent builds the TurnContent for a single turn: the first
// non-meta user entry's text, the assistant entry's text concatenated
// (thinking excluded), and every tool_use/tool_result block.
func ExtractContent(sess *session.CanonicalSession, t session.Turn) session.TurnContent {
	var content session.TurnContent

	for idx := t.StartIndex; idx <= t.EndIndex && idx < len(sess.Entries); idx++ {
		e := sess.Entries[idx]
		if e.Message == nil {
			continue
		}

		switch e.Kind {
		case session.KindUser:
			if e.IsMeta {
				continue
			}
			if content.UserPrompt == "" {
				content.UserPrompt = messageText(*e.Message)
			}
			collectToolBlocks(&content, *e.Message)
		case session.KindAssistant:
			var assistantParts []string
			if e.Message.IsString() {
				assistantParts = append(assistantParts, e.Message.ContentStr)
			} else {
				for _, b := range e.Message.Blocks {
					switch b.Kind {
					case session.BlockText:
						assistantParts = append(assistantParts, b.Text)
					case session.BlockThinking:
						content.Thinking = strings.TrimSpace(content.Thinking + "\n" + b.Thinking)
					}
				}
			}
			if len(assistantParts) > 0 {
				joined := strings.Join(assistantParts, "\n")
				if content.AssistantResponse == "" {
					content.AssistantResponse = joined
				} else {
					content.AssistantResponse += "\n" + joined
				}
			}
			collectToolBlocks(&content, *e.Message)
		}
	}

	return content
}

func collectToolBlocks(content *session.TurnContent, m session.Message) {
	if m.IsString() {
		return
	}
	for _, b := range m.Blocks {
		switch b.Kind {
		case session.BlockToolUse:
			content.ToolBlocks = append(content.ToolBlocks, session.ToolBlock{Name: b.ToolName, Content: string(b.ToolInput)})
		case session.BlockToolResult:
			content.ToolResults = append(content.ToolResults, session.ToolBlock{Name: b.ToolResultForID, Content: string(b.ToolResult)})
		}
	}
}

func messageText(m session.Message) string {
	if m.IsString() {
		return m.ContentStr
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Kind == session.BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
