// Package claude implements the C4 format adapter for Claude Code JSONL
// session archives: <claudeBase>/projects/<encodedFolder>/<uuid>.jsonl.
//
// Parsing is grounded on the scan-and-skip-malformed-lines shape of
// other_examples/07c47482_wesm-agentsview__internal-parser-claude.go.go
// and other_examples/d9ab8ae8_azkore-ai-sessions-mcp__adapters-copilot.go.go
// (both read JSONL line-by-line with a bufio.Scanner and silently skip
// lines that don't decode).
package claude

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

const maxLineSize = 64 * 1024 * 1024 // 64MB, matches the teacher's large-session headroom

// wireEntry mirrors one JSONL line's known fields. Unknown/extra fields
// are preserved via Opaque on the Entry, not here.
type wireEntry struct {
	Type        string          `json:"type"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid"`
	IsMeta      bool            `json:"isMeta"`
	IsSidechain bool            `json:"isSidechain"`
	AgentID     string          `json:"agentId"`
	Message     *wireMessage    `json:"message"`
	Timestamp   string          `json:"timestamp"`
	Cwd         string          `json:"cwd"`
	Model       string          `json:"model"`
	StopReason  string          `json:"stopReason"`
	Usage       *wireUsage      `json:"usage"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireBlock struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	Thinking   string          `json:"thinking,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

// Parse reads a Claude JSONL session file into the canonical model.
// Malformed or blank lines are skipped without failing the whole parse
// (spec.md §6).
func Parse(path string) (*session.CanonicalSession, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sferrors.NotFound("session file not found", err)
		}
		return nil, sferrors.IOError("open session file", err)
	}
	defer f.Close()

	sess := &session.CanonicalSession{Source: "claude"}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var we wireEntry
		if err := json.Unmarshal(line, &we); err != nil {
			continue // malformed line: skip, keep parsing (spec.md §7)
		}

		entry, ok := decodeEntry(we, line)
		if !ok {
			continue
		}
		sess.Entries = append(sess.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, sferrors.IOError("read session file", err)
	}

	if len(sess.Entries) > 0 {
		sess.ID = firstUUID(sess.Entries)
	}
	return sess, nil
}

func firstUUID(entries []session.Entry) string {
	for _, e := range entries {
		if e.UUID != "" {
			return e.UUID
		}
	}
	return ""
}

func decodeEntry(we wireEntry, raw []byte) (session.Entry, bool) {
	kind, ok := entryKind(we.Type)
	if !ok {
		return session.Entry{}, false
	}

	entry := session.Entry{
		UUID:        we.UUID,
		ParentUUID:  we.ParentUUID,
		Kind:        kind,
		IsMeta:      we.IsMeta,
		IsSidechain: we.IsSidechain,
		AgentID:     we.AgentID,
		Cwd:         we.Cwd,
		Model:       we.Model,
		StopReason:  we.StopReason,
		Opaque:      append(json.RawMessage(nil), raw...),
	}
	if t, err := parseTimestamp(we.Timestamp); err == nil {
		entry.Timestamp = t
	}
	if we.Usage != nil {
		entry.Usage = &session.Usage{InputTokens: we.Usage.InputTokens, OutputTokens: we.Usage.OutputTokens}
	}
	if we.Message != nil {
		msg, err := decodeMessage(*we.Message)
		if err != nil {
			return session.Entry{}, false
		}
		entry.Message = &msg
	}
	return entry, true
}

func entryKind(t string) (session.EntryKind, bool) {
	switch t {
	case "user":
		return session.KindUser, true
	case "assistant":
		return session.KindAssistant, true
	case "summary":
		return session.KindSummary, true
	case "queue-operation":
		return session.KindQueueOperation, true
	case "file-history-snapshot":
		return session.KindFileHistorySnapshot, true
	default:
		return "", false
	}
}

func decodeMessage(wm wireMessage) (session.Message, error) {
	msg := session.Message{Role: wm.Role}

	if len(wm.Content) == 0 {
		return msg, nil
	}

	// Content is either a plain string or an array of typed blocks.
	var asString string
	if err := json.Unmarshal(wm.Content, &asString); err == nil {
		msg.ContentStr = asString
		return msg, nil
	}

	var wireBlocks []wireBlock
	if err := json.Unmarshal(wm.Content, &wireBlocks); err != nil {
		return session.Message{}, fmt.Errorf("decode message content: %w", err)
	}
	msg.Blocks = make([]session.ContentBlock, 0, len(wireBlocks))
	for _, b := range wireBlocks {
		block, ok := decodeBlock(b)
		if !ok {
			continue
		}
		msg.Blocks = append(msg.Blocks, block)
	}
	return msg, nil
}

func decodeBlock(b wireBlock) (session.ContentBlock, bool) {
	switch b.Type {
	case "text":
		return session.ContentBlock{Kind: session.BlockText, Text: b.Text}, true
	case "thinking":
		return session.ContentBlock{Kind: session.BlockThinking, Thinking: b.Thinking, Signature: b.Signature}, true
	case "tool_use":
		return session.ContentBlock{
			Kind:      session.BlockToolUse,
			ToolUseID: b.ID,
			ToolName:  b.Name,
			ToolInput: b.Input,
		}, true
	case "tool_result":
		return session.ContentBlock{
			Kind:            session.BlockToolResult,
			ToolResultForID: b.ToolUseID,
			ToolResult:      b.Content,
			IsError:         b.IsError,
		}, true
	default:
		return session.ContentBlock{}, false
	}
}
