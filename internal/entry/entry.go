// internal/entry/entry.go
package entry

import (
	"encoding/json"
)

// Record types appearing in session JSONL files
const (
	TypeUser                 = "user"
	TypeAssistant            = "assistant"
	TypeSystem               = "system"
	TypeQueueOperation       = "queue-operation"
	TypeCustomTitle          = "custom-title"
	TypeSubagentCorrelation  = "subagent-correlation"
	TypeFileHistorySnapshot  = "file-history-snapshot"
	SubtypeCompactBoundary   = "compact_boundary"
	QueueOperationEnqueue    = "enqueue"
	QueueOperationDequeue    = "dequeue"
	CompactTriggerManual     = "manual"
	CompactTriggerAuto       = "auto"
)

// Entry represents a single line of a session JSONL file. All record kinds
// share this shape; which fields are populated depends on Type.
type Entry struct {
	Type        string  `json:"type"`
	Subtype     string  `json:"subtype,omitempty"`
	UUID        string  `json:"uuid,omitempty"`
	ParentUUID  *string `json:"parentUuid,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	UserType    string  `json:"userType,omitempty"`
	Slug        string  `json:"slug,omitempty"`
	Cwd         string  `json:"cwd,omitempty"`
	Version     string  `json:"version,omitempty"`
	GitBranch   string  `json:"gitBranch,omitempty"`
	IsSidechain bool    `json:"isSidechain,omitempty"`
	IsMeta      bool    `json:"isMeta,omitempty"`
	IsInterrupt bool    `json:"isInterrupt,omitempty"`
	IsInjected  bool    `json:"isInjected,omitempty"`

	// IsCompactSummary marks the summary record written after a
	// compact_boundary; the boundary itself carries CompactMetadata.
	IsCompactSummary bool             `json:"isCompactSummary,omitempty"`
	CompactMetadata  *CompactMetadata `json:"compactMetadata,omitempty"`

	Message       *Message       `json:"message,omitempty"`
	ToolUseResult *ToolUseResult `json:"toolUseResult,omitempty"`

	// queue-operation records
	Operation string `json:"operation,omitempty"`
	Content   string `json:"content,omitempty"`

	// custom-title records
	Title string `json:"title,omitempty"`

	// subagent-correlation records
	ToolUseID string `json:"toolUseId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`

	// file-history-snapshot records keep their payload opaque
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// Message is the API-shaped message body carried by user and assistant records.
type Message struct {
	Role    string         `json:"role,omitempty"`
	Content MessageContent `json:"content"`
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// MessageContent is either a plain string or an ordered list of content
// blocks; the JSON is polymorphic so both shapes round-trip.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
	IsText bool
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsText = true
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	c.IsText = false
	c.Text = ""
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// ContentBlock is one element of an array-shaped message content: text,
// thinking, tool_use or tool_result.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   *MessageContent `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Usage tracks API token usage for an assistant message.
type Usage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens,omitempty"`
	ServiceTier              string `json:"service_tier,omitempty"`
}

// CompactMetadata is carried by system/compact_boundary records.
type CompactMetadata struct {
	Trigger   string `json:"trigger"`
	PreTokens int64  `json:"preTokens"`
}

// ToolUseResult carries tool-specific payload attached to a user record that
// wraps a tool_result block.
type ToolUseResult struct {
	AgentID         string      `json:"agentId,omitempty"`
	StructuredPatch []PatchHunk `json:"structuredPatch,omitempty"`
	FilePath        string      `json:"filePath,omitempty"`
	Stdout          string      `json:"stdout,omitempty"`
	Stderr          string      `json:"stderr,omitempty"`
	Interrupted     bool        `json:"interrupted,omitempty"`
}

// PatchHunk mirrors the structured diff hunks produced by file-edit tools.
type PatchHunk struct {
	OldStart int      `json:"oldStart"`
	OldLines int      `json:"oldLines"`
	NewStart int      `json:"newStart"`
	NewLines int      `json:"newLines"`
	Lines    []string `json:"lines"`
}

// IsMessage reports whether the entry is a user or assistant record carrying
// a message body.
func (e *Entry) IsMessage() bool {
	return (e.Type == TypeUser || e.Type == TypeAssistant) && e.Message != nil
}

// IsCompactBoundary reports whether the entry marks a compaction boundary.
func (e *Entry) IsCompactBoundary() bool {
	return e.Type == TypeSystem && e.Subtype == SubtypeCompactBoundary
}

// TextContent returns the concatenated text of the message: the plain string
// form, or every text block joined in order.
func (m *Message) TextContent() string {
	if m == nil {
		return ""
	}
	if m.Content.IsText {
		return m.Content.Text
	}
	var out string
	for _, b := range m.Content.Blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// FirstToolResultID returns the tool_use_id of the first tool_result block in
// a user message, or "" when there is none.
func (e *Entry) FirstToolResultID() string {
	if e.Type != TypeUser || e.Message == nil || e.Message.Content.IsText {
		return ""
	}
	for _, b := range e.Message.Content.Blocks {
		if b.Type == "tool_result" {
			return b.ToolUseID
		}
	}
	return ""
}

// EditedLineNumber derives the line number touched by a file-edit tool from
// the structured patch, 0 when no patch is attached.
func (r *ToolUseResult) EditedLineNumber() int {
	if r == nil || len(r.StructuredPatch) == 0 {
		return 0
	}
	return r.StructuredPatch[0].NewStart
}
