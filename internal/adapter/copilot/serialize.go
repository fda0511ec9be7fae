package copilot

import (
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Serialize rebuilds a chatSessions/<uuid>.json document from a canonical
// session. Entries are expected in (user, assistant) pairs, the shape
// Parse produces. Untouched assistant entries rebuild their request from
// the original Opaque bytes; mutated ones are rebuilt purely from the
// canonical model's blocks.
func Serialize(sess *session.CanonicalSession) ([]byte, error) {
	out := wireSession{}
	entries := sess.Entries
	for i := 0; i+1 < len(entries); i += 2 {
		user, assistant := entries[i], entries[i+1]
		if user.Kind != session.KindUser || assistant.Kind != session.KindAssistant {
			return nil, fmt.Errorf("copilot serialize: entry pair %d is not (user, assistant)", i)
		}
		req, err := encodeRequest(user, assistant)
		if err != nil {
			return nil, err
		}
		out.Requests = append(out.Requests, req)
	}
	return json.MarshalIndent(out, "", "  ")
}

func encodeRequest(user, assistant session.Entry) (wireRequest, error) {
	var req wireRequest
	if !assistant.Dirty && len(assistant.Opaque) > 0 {
		if err := json.Unmarshal(assistant.Opaque, &req); err != nil {
			return wireRequest{}, fmt.Errorf("copilot serialize: decode opaque request: %w", err)
		}
	} else {
		req.ModelID = assistant.Model
		req.IsCanceled = assistant.IsMeta
		if !assistant.Timestamp.IsZero() {
			req.Timestamp = assistant.Timestamp.UnixMilli()
		}
	}

	if user.Message != nil {
		req.Message = wireMessage{Text: user.Message.ContentStr}
	}

	if assistant.Dirty && assistant.Message != nil {
		items, result := encodeResponse(assistant.Message.Blocks)
		req.Response = items
		req.Result = result
	}

	return req, nil
}

func encodeResponse(blocks []session.ContentBlock) ([]wireRespItem, *wireResult) {
	var items []wireRespItem
	result := &wireResult{ToolCallResults: map[string]json.RawMessage{}}

	for _, b := range blocks {
		switch b.Kind {
		case session.BlockText:
			items = append(items, wireRespItem{Kind: "markdownContent", Value: b.Text})
		case session.BlockToolUse:
			items = append(items, wireRespItem{
				Kind:       "toolInvocationSerialized",
				ToolCallID: b.ToolUseID,
				ToolID:     b.ToolName,
				Invocation: b.ToolInput,
			})
		case session.BlockToolResult:
			result.ToolCallResults[b.ToolResultForID] = b.ToolResult
			if b.IsError {
				markErrorOnInvocation(items, b.ToolResultForID)
			}
		}
	}

	if len(result.ToolCallResults) == 0 {
		result = nil
	}
	return items, result
}

func markErrorOnInvocation(items []wireRespItem, toolCallID string) {
	for i := range items {
		if items[i].ToolCallID == toolCallID {
			items[i].IsError = true
			return
		}
	}
}
