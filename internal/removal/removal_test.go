package removal

import (
	"testing"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

func buildToolSession() *session.CanonicalSession {
	return &session.CanonicalSession{
		Entries: []session.Entry{
			{Kind: session.KindUser, Message: &session.Message{Role: "user", ContentStr: "first"}},
			{Kind: session.KindAssistant, Message: &session.Message{
				Role: "assistant",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockToolUse, ToolUseID: "t1", ToolName: "Read", ToolInput: []byte(`{"path":"a"}`)},
				},
			}},
			{Kind: session.KindUser, Message: &session.Message{
				Role: "user",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockToolResult, ToolResultForID: "t1", ToolResult: []byte(`"line1\nline2\nline3\nline4\nline5"`)},
				},
			}},
			{Kind: session.KindAssistant, Message: &session.Message{
				Role: "assistant",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockToolUse, ToolUseID: "t2", ToolName: "Write", ToolInput: []byte(`{"path":"b"}`)},
				},
			}},
			{Kind: session.KindUser, Message: &session.Message{
				Role: "user",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockToolResult, ToolResultForID: "t2", ToolResult: []byte(`"ok"`)},
				},
			}},
		},
	}
}

// Invariant 4: after removal in remove mode, no orphan tool_result remains.
func TestApplyRemoveModeLeavesNoOrphanToolResult(t *testing.T) {
	sess := buildToolSession()
	out, stats := Apply(sess, Options{ToolRemoval: 100, ToolHandlingMode: ModeRemove})

	if stats.ToolCallsRemoved != 2 {
		t.Fatalf("expected 2 tool calls removed, got %d", stats.ToolCallsRemoved)
	}

	ids := map[string]bool{}
	for _, e := range out.Entries {
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		for _, b := range e.Message.Blocks {
			if b.Kind == session.BlockToolUse {
				ids[b.ToolUseID] = true
			}
		}
	}
	for _, e := range out.Entries {
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		for _, b := range e.Message.Blocks {
			if b.Kind == session.BlockToolResult && !ids[b.ToolResultForID] {
				t.Errorf("orphan tool_result for %q survives", b.ToolResultForID)
			}
		}
	}
}

func TestApplyRemovesOldestPercentOnly(t *testing.T) {
	sess := buildToolSession()
	out, stats := Apply(sess, Options{ToolRemoval: 50, ToolHandlingMode: ModeRemove})
	if stats.ToolCallsRemoved != 1 {
		t.Fatalf("expected 1 tool call removed (oldest of 2), got %d", stats.ToolCallsRemoved)
	}

	// t2 (the newer pair) must survive untouched.
	foundT2Use, foundT2Result := false, false
	for _, e := range out.Entries {
		if e.Message == nil || e.Message.IsString() {
			continue
		}
		for _, b := range e.Message.Blocks {
			if b.Kind == session.BlockToolUse && b.ToolUseID == "t2" {
				foundT2Use = true
			}
			if b.Kind == session.BlockToolResult && b.ToolResultForID == "t2" {
				foundT2Result = true
			}
		}
	}
	if !foundT2Use || !foundT2Result {
		t.Errorf("expected newer tool pair t2 to survive, use=%v result=%v", foundT2Use, foundT2Result)
	}
}

func TestApplyTruncateModeBoundsContent(t *testing.T) {
	sess := buildToolSession()
	out, stats := Apply(sess, Options{ToolRemoval: 100, ToolHandlingMode: ModeTruncate})
	if stats.ToolCallsTruncated != 2 {
		t.Fatalf("expected 2 truncated, got %d", stats.ToolCallsTruncated)
	}

	resultEntry := out.Entries[2]
	truncated := string(resultEntry.Message.Blocks[0].ToolResult)
	if len(truncated) >= len(`"line1\nline2\nline3\nline4\nline5"`) {
		t.Errorf("truncated result not shorter than original: %q", truncated)
	}
}

func TestApplyThinkingRemovalOldestFirst(t *testing.T) {
	sess := &session.CanonicalSession{
		Entries: []session.Entry{
			{Kind: session.KindUser, Message: &session.Message{Role: "user", ContentStr: "q1"}},
			{Kind: session.KindAssistant, Message: &session.Message{
				Role: "assistant",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockThinking, Thinking: "old reasoning"},
					{Kind: session.BlockText, Text: "reply one"},
				},
			}},
			{Kind: session.KindUser, Message: &session.Message{Role: "user", ContentStr: "q2"}},
			{Kind: session.KindAssistant, Message: &session.Message{
				Role: "assistant",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockThinking, Thinking: "new reasoning"},
					{Kind: session.BlockText, Text: "reply two"},
				},
			}},
		},
	}
	out, stats := Apply(sess, Options{ThinkingRemoval: 50})
	if stats.ThinkingBlocksRemoved != 1 {
		t.Fatalf("expected 1 thinking block removed, got %d", stats.ThinkingBlocksRemoved)
	}

	firstAssistant := out.Entries[1]
	for _, b := range firstAssistant.Message.Blocks {
		if b.Kind == session.BlockThinking {
			t.Errorf("expected oldest thinking block removed, still present: %+v", b)
		}
	}
	secondAssistant := out.Entries[3]
	hasThinking := false
	for _, b := range secondAssistant.Message.Blocks {
		if b.Kind == session.BlockThinking {
			hasThinking = true
		}
	}
	if !hasThinking {
		t.Error("expected newer thinking block to survive")
	}
}

// A turn whose assistant entry becomes empty after removal is still retained.
func TestApplyRetainsEmptyAssistantEntry(t *testing.T) {
	sess := &session.CanonicalSession{
		Entries: []session.Entry{
			{Kind: session.KindUser, Message: &session.Message{Role: "user", ContentStr: "do it"}},
			{Kind: session.KindAssistant, Message: &session.Message{
				Role: "assistant",
				Blocks: []session.ContentBlock{
					{Kind: session.BlockToolUse, ToolUseID: "t1", ToolName: "Read"},
				},
			}},
		},
	}
	out, _ := Apply(sess, Options{ToolRemoval: 100, ToolHandlingMode: ModeRemove})
	if len(out.Entries) != 2 {
		t.Fatalf("expected entry retained even though now empty, got %d entries", len(out.Entries))
	}
	if len(out.Entries[1].Message.Blocks) != 0 {
		t.Errorf("expected assistant entry to have zero blocks, got %+v", out.Entries[1].Message.Blocks)
	}
}
