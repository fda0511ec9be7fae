// Package copilot implements the C4 format adapter for VS Code Copilot
// Chat session archives: <vscodeBase>/<workspaceHash>/chatSessions/<uuid>.json,
// backed by the workspace's state.vscdb session index.
//
// The wire shapes are grounded on
// other_examples/fa056641_usetempo-tempo-cli__internal-detector-copilot.go.go
// (copilotSession/copilotRequest/copilotRespPart) and on the SQLite access
// pattern in _examples/boozedog-sidecar/internal/adapter/cursor/adapter.go
// (database/sql over modernc.org/sqlite, read-only DSN for inspection).
package copilot

import "encoding/json"

// wireSession is the top-level shape of a chatSessions/<uuid>.json document.
type wireSession struct {
	Version       int             `json:"version,omitempty"`
	Requests      []wireRequest   `json:"requests"`
	SelectedModel json.RawMessage `json:"selectedModel,omitempty"`
}

// wireRequest is one turn: a user message plus the assistant's response
// stream for it.
type wireRequest struct {
	RequestID  string          `json:"requestId,omitempty"`
	Message    wireMessage     `json:"message"`
	Response   []wireRespItem  `json:"response,omitempty"`
	Result     *wireResult     `json:"result,omitempty"`
	IsCanceled bool            `json:"isCanceled,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"` // unix ms
	ModelID    string          `json:"modelId,omitempty"`
	Agent      json.RawMessage `json:"agent,omitempty"`
}

// wireMessage is the user's submitted message for a request.
type wireMessage struct {
	Text string `json:"text"`
}

// wireRespItem is one typed item in a request's response[] stream. Only
// "text"/"markdownContent" and "toolInvocationSerialized" carry canonical
// meaning; other kinds (prepareToolInvocation, mcpServersStarting, ...)
// are kept only inside the assistant entry's Opaque, which is the request
// re-encoded from wireRequest. Fields not declared on wireRequest or
// wireRespItem are not kept.
type wireRespItem struct {
	Kind       string          `json:"kind"`
	Value      string          `json:"value,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolID     string          `json:"toolId,omitempty"`
	Invocation json.RawMessage `json:"invocationMessage,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
	URI        *wireURI        `json:"uri,omitempty"`
}

type wireURI struct {
	Path string `json:"path"`
}

// wireResult carries the per-request metadata and the tool call results
// keyed by toolCallId, companion to a toolInvocationSerialized item.
type wireResult struct {
	Metadata        json.RawMessage            `json:"metadata,omitempty"`
	ToolCallResults map[string]json.RawMessage `json:"toolCallResults,omitempty"`
}

// sessionIndex is the blob stored under the well-known ItemTable key in
// state.vscdb: {version, entries: {sessionId: entryMeta}}.
type sessionIndex struct {
	Version int                          `json:"version"`
	Entries map[string]sessionIndexEntry `json:"entries"`
}

type sessionIndexEntry struct {
	Title            string `json:"title,omitempty"`
	LastMessageDate  int64  `json:"lastMessageDate"`
	IsImported       bool   `json:"isImported"`
	InitialLocation  string `json:"initialLocation"`
	IsEmpty          bool   `json:"isEmpty"`
}
