// Package removal implements the C7 removal engine: positional-threshold
// pruning or truncation of tool_use/tool_result pairs and thinking
// blocks, preserving the invariant that no orphan tool_result survives.
package removal

import (
	"encoding/json"
	"strings"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// HandlingMode is how an oldest-percentile tool call is pruned.
type HandlingMode string

const (
	ModeRemove   HandlingMode = "remove"
	ModeTruncate HandlingMode = "truncate"
)

// Options controls one removal pass.
type Options struct {
	ToolRemoval      int // percent [0,100]
	ToolHandlingMode HandlingMode
	ThinkingRemoval  int // percent [0,100]
}

// truncateLines is how many lines of a truncated tool payload survive
// before the ellipsis marker.
const truncateLines = 3

// toolCallRef locates one tool_use block and, if present, its matching
// tool_result block.
type toolCallRef struct {
	useEntry    int
	useBlock    int
	resultEntry int // -1 if no matching result
	resultBlock int
}

// Apply returns a new session with the oldest Options.ToolRemoval% of
// tool_use/tool_result pairs and the oldest Options.ThinkingRemoval% of
// thinking blocks removed or truncated, plus the counts of what changed.
func Apply(sess *session.CanonicalSession, opts Options) (*session.CanonicalSession, session.CloneStats) {
	out := cloneSession(sess)
	var stats session.CloneStats

	refs := collectToolCallRefs(out)
	cutoff := countForPercent(len(refs), opts.ToolRemoval)
	for i := 0; i < cutoff; i++ {
		applyToolHandling(out, refs[i], opts.ToolHandlingMode, &stats)
	}

	thinkingRefs := collectThinkingRefs(out)
	thinkingCutoff := countForPercent(len(thinkingRefs), opts.ThinkingRemoval)
	for i := 0; i < thinkingCutoff; i++ {
		removeThinkingBlock(out, thinkingRefs[i])
		stats.ThinkingBlocksRemoved++
	}

	pruneEmptyAssistantBlocks(out)
	return out, stats
}

func cloneSession(sess *session.CanonicalSession) *session.CanonicalSession {
	out := &session.CanonicalSession{ID: sess.ID, Source: sess.Source}
	out.Entries = make([]session.Entry, len(sess.Entries))
	for i, e := range sess.Entries {
		ne := e
		if e.Message != nil {
			nm := *e.Message
			if e.Message.Blocks != nil {
				nm.Blocks = append([]session.ContentBlock(nil), e.Message.Blocks...)
			}
			ne.Message = &nm
		}
		out.Entries[i] = ne
	}
	return out
}

func collectToolCallRefs(sess *session.CanonicalSession) []toolCallRef {
	var refs []toolCallRef
	resultIndex := map[string][2]int{} // toolUseID -> (entryIdx, blockIdx)

	for ei, e := range sess.Entries {
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		for bi, b := range e.Message.Blocks {
			if b.Kind == session.BlockToolResult {
				resultIndex[b.ToolResultForID] = [2]int{ei, bi}
			}
		}
	}

	for ei, e := range sess.Entries {
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		for bi, b := range e.Message.Blocks {
			if b.Kind != session.BlockToolUse {
				continue
			}
			ref := toolCallRef{useEntry: ei, useBlock: bi, resultEntry: -1}
			if loc, ok := resultIndex[b.ToolUseID]; ok {
				ref.resultEntry, ref.resultBlock = loc[0], loc[1]
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

type thinkingRef struct {
	entry int
	block int
}

func collectThinkingRefs(sess *session.CanonicalSession) []thinkingRef {
	var refs []thinkingRef
	for ei, e := range sess.Entries {
		if e.Kind != session.KindAssistant || e.Message == nil || e.Message.IsString() {
			continue
		}
		for bi, b := range e.Message.Blocks {
			if b.Kind == session.BlockThinking {
				refs = append(refs, thinkingRef{entry: ei, block: bi})
			}
		}
	}
	return refs
}

func countForPercent(total, percent int) int {
	if total == 0 || percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return total
	}
	n := (total*percent + 99) / 100
	if n > total {
		n = total
	}
	return n
}

func applyToolHandling(sess *session.CanonicalSession, ref toolCallRef, mode HandlingMode, stats *session.CloneStats) {
	switch mode {
	case ModeTruncate:
		truncateBlock(&sess.Entries[ref.useEntry].Message.Blocks[ref.useBlock])
		sess.Entries[ref.useEntry].Dirty = true
		if ref.resultEntry >= 0 {
			truncateBlock(&sess.Entries[ref.resultEntry].Message.Blocks[ref.resultBlock])
			sess.Entries[ref.resultEntry].Dirty = true
		}
		stats.ToolCallsTruncated++
	default: // ModeRemove
		markRemoved(sess, ref.useEntry, ref.useBlock)
		if ref.resultEntry >= 0 {
			markRemoved(sess, ref.resultEntry, ref.resultBlock)
		}
		stats.ToolCallsRemoved++
	}
}

func truncateBlock(b *session.ContentBlock) {
	switch b.Kind {
	case session.BlockToolUse:
		b.ToolInput = truncatePayload(b.ToolInput)
	case session.BlockToolResult:
		b.ToolResult = truncatePayload(b.ToolResult)
	}
}

// truncatePayload keeps the first truncateLines lines of a tool payload
// plus an ellipsis. A JSON string payload is split on the lines of its
// decoded text; the summary is re-encoded as a JSON string so the block
// still serializes as valid JSON.
func truncatePayload(raw json.RawMessage) json.RawMessage {
	text := string(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		text = s
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= truncateLines {
		return raw
	}
	out, _ := json.Marshal(strings.Join(lines[:truncateLines], "\n") + "\n...")
	return out
}

// removedMark tags a block for deletion; pruneEmptyAssistantBlocks
// performs the actual compaction pass once all refs are processed so
// block indices collected earlier stay valid.
const removedMark session.BlockKind = "__removed__"

func markRemoved(sess *session.CanonicalSession, entryIdx, blockIdx int) {
	sess.Entries[entryIdx].Message.Blocks[blockIdx].Kind = removedMark
	sess.Entries[entryIdx].Dirty = true
}

func removeThinkingBlock(sess *session.CanonicalSession, ref thinkingRef) {
	markRemoved(sess, ref.entry, ref.block)
}

// pruneEmptyAssistantBlocks drops every block marked removedMark. An
// assistant entry left with zero blocks is retained (spec.md §9: keeps
// totalTurns stable), but a user entry whose only block was a removed
// tool_result and had no other content is also retained for the same
// reason.
func pruneEmptyAssistantBlocks(sess *session.CanonicalSession) {
	for i := range sess.Entries {
		e := &sess.Entries[i]
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		filtered := e.Message.Blocks[:0]
		for _, b := range e.Message.Blocks {
			if b.Kind == removedMark {
				continue
			}
			filtered = append(filtered, b)
		}
		e.Message.Blocks = filtered
	}
}
