package copilot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Parse reads a Copilot chatSessions/<uuid>.json document into the
// canonical model. Each request becomes one user entry followed by one
// assistant entry (spec.md §4.1); a canceled request is retained but
// marked IsMeta so turn counting skips it.
func Parse(path, sessionID string) (*session.CanonicalSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sferrors.NotFound("copilot session file not found", err)
		}
		return nil, sferrors.IOError("read copilot session file", err)
	}

	var ws wireSession
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, sferrors.IOError("decode copilot session json", err)
	}

	sess := &session.CanonicalSession{ID: sessionID, Source: "copilot"}
	for _, req := range ws.Requests {
		userEntry, assistantEntry := decodeRequest(req)
		sess.Entries = append(sess.Entries, userEntry, assistantEntry)
	}
	return sess, nil
}

func decodeRequest(req wireRequest) (session.Entry, session.Entry) {
	ts := time.UnixMilli(req.Timestamp).UTC()

	userRaw, _ := json.Marshal(req.Message)
	userEntry := session.Entry{
		UUID:      uuid.NewString(),
		Kind:      session.KindUser,
		IsMeta:    req.IsCanceled,
		Timestamp: ts,
		Message: &session.Message{
			Role:       "user",
			ContentStr: req.Message.Text,
		},
		Opaque: userRaw,
	}

	assistantRaw, _ := json.Marshal(req)
	blocks := decodeResponse(req.Response, req.Result)
	assistantEntry := session.Entry{
		UUID:       uuid.NewString(),
		ParentUUID: userEntry.UUID,
		Kind:       session.KindAssistant,
		IsMeta:     req.IsCanceled,
		Timestamp:  ts,
		Model:      req.ModelID,
		Message: &session.Message{
			Role:   "assistant",
			Blocks: blocks,
		},
		Opaque: assistantRaw,
	}
	return userEntry, assistantEntry
}

func decodeResponse(items []wireRespItem, result *wireResult) []session.ContentBlock {
	var blocks []session.ContentBlock
	for _, item := range items {
		switch item.Kind {
		case "text", "markdownContent":
			if item.Value == "" {
				continue
			}
			blocks = append(blocks, session.ContentBlock{Kind: session.BlockText, Text: item.Value})
		case "toolInvocationSerialized":
			id := item.ToolCallID
			blocks = append(blocks, session.ContentBlock{
				Kind:      session.BlockToolUse,
				ToolUseID: id,
				ToolName:  item.ToolID,
				ToolInput: item.Invocation,
			})
			if result != nil {
				if resultContent, ok := result.ToolCallResults[id]; ok {
					blocks = append(blocks, session.ContentBlock{
						Kind:            session.BlockToolResult,
						ToolResultForID: id,
						ToolResult:      resultContent,
						IsError:         item.IsError,
					})
				}
			}
		default:
			// prepareToolInvocation, mcpServersStarting, etc: no canonical
			// meaning; kept only in the re-encoded request held in Opaque.
		}
	}
	return blocks
}
