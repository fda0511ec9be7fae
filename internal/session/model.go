// Package session defines the canonical, source-agnostic representation
// that both the Claude JSONL adapter and the Copilot JSON+SQLite adapter
// parse into, and that the turn analyzer, removal engine, and compression
// engine all operate on.
package session

import (
	"encoding/json"
	"time"
)

// EntryKind is the tag for an Entry's role in a session.
type EntryKind string

const (
	KindUser              EntryKind = "user"
	KindAssistant         EntryKind = "assistant"
	KindSummary           EntryKind = "summary"
	KindQueueOperation     EntryKind = "queue-operation"
	KindFileHistorySnapshot EntryKind = "file-history-snapshot"
	KindMeta              EntryKind = "meta"
)

// BlockKind tags a ContentBlock variant.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockThinking   BlockKind = "thinking"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is a tagged union over the four block variants the core
// understands. Only the fields relevant to Kind are populated.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockThinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// BlockToolUse
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`

	// BlockToolResult
	ToolResultForID string          `json:"tool_result_for_id,omitempty"`
	ToolResult      json.RawMessage `json:"tool_result,omitempty"`
	IsError         bool            `json:"is_error,omitempty"`

	// Opaque is a slot for source-specific block fields with no canonical
	// meaning. Neither adapter fills or reads it: block-level fields such
	// as Copilot toolSpecificData are not carried on the block.
	Opaque json.RawMessage `json:"opaque,omitempty"`
}

// Message is the role + content payload of an Entry. Content is either a
// plain string (Blocks nil, ContentStr holding the text, possibly empty)
// or an ordered sequence of ContentBlock.
type Message struct {
	Role      string         `json:"role"`
	ContentStr string        `json:"content_str,omitempty"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
}

// IsString reports whether the message content is a plain string rather
// than a block sequence.
func (m Message) IsString() bool {
	return m.Blocks == nil
}

// Entry is one logical record from a session.
type Entry struct {
	UUID       string    `json:"uuid,omitempty"`
	ParentUUID string    `json:"parent_uuid,omitempty"`
	Kind       EntryKind `json:"kind"`
	IsMeta     bool      `json:"is_meta,omitempty"`
	IsSidechain bool     `json:"is_sidechain,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`

	Message *Message `json:"message,omitempty"`

	Timestamp  time.Time `json:"timestamp,omitempty"`
	Cwd        string    `json:"cwd,omitempty"`
	Model      string    `json:"model,omitempty"`
	StopReason string    `json:"stop_reason,omitempty"`
	Usage      *Usage    `json:"usage,omitempty"`

	// Opaque carries source-specific fields not expressible canonically,
	// re-emitted verbatim on serialize.
	Opaque json.RawMessage `json:"opaque,omitempty"`

	// Dirty marks that Message has been mutated since parse (by the
	// removal or compression engine). Adapters use this to decide whether
	// a line can be re-emitted verbatim from Opaque or must be rebuilt.
	Dirty bool `json:"-"`
}

// Usage records LLM token accounting carried on an assistant entry.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// CanonicalSession is the in-memory, source-agnostic representation
// produced by the adapters and consumed by every other component.
type CanonicalSession struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"` // "claude" or "copilot"
	Entries []Entry `json:"entries"`
}

// Turn is an inclusive index range [StartIndex, EndIndex] into Entries.
type Turn struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// TokensByType partitions token mass into semantic buckets.
// Total must equal the sum of the other four fields.
type TokensByType struct {
	User      int `json:"user"`
	Assistant int `json:"assistant"`
	Thinking  int `json:"thinking"`
	Tool      int `json:"tool"`
	Total     int `json:"total"`
}

// Add returns the element-wise sum of two TokensByType values.
func (t TokensByType) Add(o TokensByType) TokensByType {
	return TokensByType{
		User:      t.User + o.User,
		Assistant: t.Assistant + o.Assistant,
		Thinking:  t.Thinking + o.Thinking,
		Tool:      t.Tool + o.Tool,
		Total:     t.Total + o.Total,
	}
}

// ToolBlock is a named serialised tool_use or tool_result payload.
type ToolBlock struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// TurnContent is the extracted, human-consumable content of a single turn.
type TurnContent struct {
	UserPrompt        string      `json:"user_prompt"`
	ToolBlocks        []ToolBlock `json:"tool_blocks"`
	ToolResults       []ToolBlock `json:"tool_results"`
	Thinking          string      `json:"thinking,omitempty"`
	AssistantResponse string      `json:"assistant_response"`
}

// CompressionLevel is the target retained fraction for a compression task.
type CompressionLevel string

const (
	LevelCompress      CompressionLevel = "compress"       // ~35% of original
	LevelHeavyCompress CompressionLevel = "heavy-compress"  // ~10% of original
)

// TaskStatus is the terminal or in-flight state of a CompressionTask.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskInFlight TaskStatus = "in-flight"
	TaskSuccess  TaskStatus = "success"
	TaskFailed   TaskStatus = "failed"
)

// CompressionTask tracks one message scheduled for LLM-based compression.
type CompressionTask struct {
	MessageIndex    int
	EntryType       string // "user" or "assistant"
	OriginalContent string
	Level           CompressionLevel
	EstimatedTokens int
	Attempt         int
	TimeoutMs       int
	BaseTimeoutMs   int
	Status          TaskStatus
	Result          string
	Err             error
}

// CompressionStats summarises the outcome of a compression pass over a
// whole session.
type CompressionStats struct {
	MessagesCompressed int `json:"messages_compressed"`
	MessagesSkipped    int `json:"messages_skipped"`
	MessagesFailed     int `json:"messages_failed"`
	OriginalTokens     int `json:"original_tokens"`
	CompressedTokens   int `json:"compressed_tokens"`
	TokensRemoved      int `json:"tokens_removed"`
	ReductionPercent   int `json:"reduction_percent"`
}

// CloneStats records what the removal and compression engines did to
// produce a clone.
type CloneStats struct {
	OriginalTurns          int                `json:"original_turns"`
	ClonedTurns            int                `json:"cloned_turns"`
	ToolCallsRemoved       int                `json:"tool_calls_removed"`
	ToolCallsTruncated     int                `json:"tool_calls_truncated"`
	ThinkingBlocksRemoved  int                `json:"thinking_blocks_removed"`
	Compression            *CompressionStats  `json:"compression,omitempty"`
}

// CloneResult is returned from the full clone pipeline.
type CloneResult struct {
	Session      *CanonicalSession `json:"-"`
	Stats        CloneStats        `json:"stats"`
	WrittenToDisk bool              `json:"written_to_disk"`
	SessionPath  string            `json:"session_path,omitempty"`
	BackupPath   string            `json:"backup_path,omitempty"`
}

// ProjectRef identifies one discoverable project/workspace.
type ProjectRef struct {
	Folder string `json:"folder"` // on-disk key, authoritative for I/O
	Path   string `json:"path"`   // best-effort human form, display-only
}

// SessionSummary is lightweight session metadata for listing.
type SessionSummary struct {
	ID              string    `json:"id"`
	FirstMessage    string    `json:"first_message"`
	LastModifiedAt  time.Time `json:"last_modified_at"`
	SizeBytes       int64     `json:"size_bytes"`
	TurnCount       int       `json:"turn_count"`
}
