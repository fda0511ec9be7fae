package copilot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
)

const sampleSession = `{
  "requests": [
    {
      "requestId": "r1",
      "message": {"text": "fix the bug"},
      "timestamp": 1700000000000,
      "modelId": "gpt-4",
      "response": [
        {"kind": "markdownContent", "value": "looking into it"},
        {"kind": "toolInvocationSerialized", "toolCallId": "tc1", "toolId": "readFile", "invocationMessage": {"path": "a.go"}}
      ],
      "result": {
        "toolCallResults": {"tc1": "file contents here"}
      }
    },
    {
      "requestId": "r2",
      "message": {"text": "cancelled one"},
      "timestamp": 1700000001000,
      "isCanceled": true,
      "response": []
    }
  ]
}`

func writeSessionFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseBuildsUserAssistantPairs(t *testing.T) {
	path := writeSessionFile(t, sampleSession)
	sess, err := Parse(path, "abc123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sess.ID != "abc123" || sess.Source != "copilot" {
		t.Errorf("sess = %+v", sess)
	}
	if len(sess.Entries) != 4 {
		t.Fatalf("expected 4 entries (2 requests x 2), got %d", len(sess.Entries))
	}

	user0, asst0 := sess.Entries[0], sess.Entries[1]
	if user0.Kind != session.KindUser || user0.Message.ContentStr != "fix the bug" {
		t.Errorf("user0 = %+v", user0)
	}
	if asst0.Kind != session.KindAssistant || asst0.ParentUUID != user0.UUID {
		t.Errorf("asst0 parent link broken: %+v", asst0)
	}
	if len(asst0.Message.Blocks) != 3 {
		t.Fatalf("expected text + tool_use + tool_result blocks, got %d", len(asst0.Message.Blocks))
	}
	if asst0.Message.Blocks[0].Kind != session.BlockText {
		t.Errorf("block0 kind = %s", asst0.Message.Blocks[0].Kind)
	}
	if asst0.Message.Blocks[1].Kind != session.BlockToolUse || asst0.Message.Blocks[1].ToolUseID != "tc1" {
		t.Errorf("block1 = %+v", asst0.Message.Blocks[1])
	}
	if asst0.Message.Blocks[2].Kind != session.BlockToolResult || asst0.Message.Blocks[2].ToolResultForID != "tc1" {
		t.Errorf("block2 = %+v", asst0.Message.Blocks[2])
	}
}

func TestParseCanceledRequestMarkedMeta(t *testing.T) {
	path := writeSessionFile(t, sampleSession)
	sess, err := Parse(path, "abc123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	user1, asst1 := sess.Entries[2], sess.Entries[3]
	if !user1.IsMeta || !asst1.IsMeta {
		t.Errorf("canceled request entries should be marked IsMeta: %+v %+v", user1, asst1)
	}
}

func TestSerializeUnmodifiedPreservesToolCallResults(t *testing.T) {
	path := writeSessionFile(t, sampleSession)
	sess, err := Parse(path, "abc123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := Serialize(sess)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var rebuilt wireSession
	if err := json.Unmarshal(out, &rebuilt); err != nil {
		t.Fatalf("unmarshal serialized output: %v", err)
	}
	if len(rebuilt.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(rebuilt.Requests))
	}
	if rebuilt.Requests[0].Message.Text != "fix the bug" {
		t.Errorf("message text = %q", rebuilt.Requests[0].Message.Text)
	}
	if rebuilt.Requests[0].Result == nil || string(rebuilt.Requests[0].Result.ToolCallResults["tc1"]) != `"file contents here"` {
		t.Errorf("tool call result not preserved: %+v", rebuilt.Requests[0].Result)
	}
}

func TestSerializeDirtyAssistantRebuildsResponseFromBlocks(t *testing.T) {
	path := writeSessionFile(t, sampleSession)
	sess, err := Parse(path, "abc123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sess.Entries[1].Message.Blocks[0].Text = "redacted"
	sess.Entries[1].Dirty = true

	out, err := Serialize(sess)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	var rebuilt wireSession
	if err := json.Unmarshal(out, &rebuilt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rebuilt.Requests[0].Response[0].Value != "redacted" {
		t.Errorf("response[0].Value = %q, want redacted", rebuilt.Requests[0].Response[0].Value)
	}
}

func TestParseMissingFileReturnsNotFound(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.json"), "id")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var sfErr *sferrors.Error
	if !errors.As(err, &sfErr) || sfErr.Kind != sferrors.KindNotFound {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}
