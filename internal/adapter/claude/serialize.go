package claude

import (
	"bytes"
	"encoding/json"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Serialize renders a canonical session back to Claude JSONL bytes.
// Entries untouched since parse (Dirty == false, Opaque present) are
// re-emitted byte-for-byte; mutated entries are rebuilt from the
// canonical model with every opaque field from the original line
// preserved except "message" (spec.md §9, invariant 2).
func Serialize(sess *session.CanonicalSession) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range sess.Entries {
		line, err := serializeEntry(e)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func serializeEntry(e session.Entry) ([]byte, error) {
	if !e.Dirty && len(e.Opaque) > 0 {
		return e.Opaque, nil
	}

	fields := map[string]json.RawMessage{}
	if len(e.Opaque) > 0 {
		_ = json.Unmarshal(e.Opaque, &fields)
	}

	fields["type"] = mustMarshal(string(e.Kind))
	fields["uuid"] = mustMarshal(e.UUID)
	if e.ParentUUID != "" {
		fields["parentUuid"] = mustMarshal(e.ParentUUID)
	}
	if e.IsMeta {
		fields["isMeta"] = mustMarshal(true)
	}
	if e.IsSidechain {
		fields["isSidechain"] = mustMarshal(true)
	}
	if e.AgentID != "" {
		fields["agentId"] = mustMarshal(e.AgentID)
	}
	if e.Cwd != "" {
		fields["cwd"] = mustMarshal(e.Cwd)
	}
	if e.Model != "" {
		fields["model"] = mustMarshal(e.Model)
	}
	if e.StopReason != "" {
		fields["stopReason"] = mustMarshal(e.StopReason)
	}
	if ts := formatTimestamp(e.Timestamp); ts != "" {
		fields["timestamp"] = mustMarshal(ts)
	}
	if e.Usage != nil {
		fields["usage"] = mustMarshal(map[string]int{
			"input_tokens":  e.Usage.InputTokens,
			"output_tokens": e.Usage.OutputTokens,
		})
	}

	if e.Message != nil {
		wm, err := encodeMessage(*e.Message)
		if err != nil {
			return nil, err
		}
		fields["message"] = wm
	} else {
		delete(fields, "message")
	}

	return json.Marshal(fields)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func encodeMessage(m session.Message) (json.RawMessage, error) {
	out := struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}{Role: m.Role}

	if m.IsString() {
		out.Content = mustMarshal(m.ContentStr)
		return json.Marshal(out)
	}

	blocks := make([]wireBlock, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		blocks = append(blocks, encodeBlock(b))
	}
	content, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	out.Content = content
	return json.Marshal(out)
}

func encodeBlock(b session.ContentBlock) wireBlock {
	switch b.Kind {
	case session.BlockText:
		return wireBlock{Type: "text", Text: b.Text}
	case session.BlockThinking:
		return wireBlock{Type: "thinking", Thinking: b.Thinking, Signature: b.Signature}
	case session.BlockToolUse:
		return wireBlock{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: b.ToolInput}
	case session.BlockToolResult:
		return wireBlock{Type: "tool_result", ToolUseID: b.ToolResultForID, Content: b.ToolResult, IsError: b.IsError}
	default:
		return wireBlock{}
	}
}
