// Package types holds the conversation and worker data model shared across
// forgeagent's packages: messages and content blocks owned by the active
// agent loop, and sessions/tasks/output chunks owned by the worker store.
package types

// Role distinguishes the three message variants the agent loop produces.
// Progress messages are loop-internal bookkeeping and are never sent to a
// provider.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleProgress  Role = "progress"
)

// Message is a tagged variant over Role. User and assistant messages carry
// Content; progress messages instead carry ToolUseID and Text and refer back
// to the tool-use they report progress for.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Role      Role   `json:"role"`
	Created   int64  `json:"created"`

	// Content holds the ordered content blocks for user/assistant messages.
	// A plain-string user message is represented as a single TextBlock.
	Content []ContentBlock `json:"content,omitempty"`

	// ToolUseID/Text are set only on progress messages.
	ToolUseID string `json:"toolUseId,omitempty"`
	Text      string `json:"text,omitempty"`

	ModelID    string      `json:"modelID,omitempty"`
	ProviderID string      `json:"providerID,omitempty"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`
	Cost       float64     `json:"cost,omitempty"`
}

// FinishReason is the provider-normalized terminal state of a completion.
type FinishReason string

const (
	FinishStop    FinishReason = "stop"
	FinishToolUse FinishReason = "tool_use"
	FinishLength  FinishReason = "length"
	FinishError   FinishReason = "error"
)

// TokenUsage carries token accounting attached to an assistant message when
// the provider reports it.
type TokenUsage struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	Reasoning int `json:"reasoning,omitempty"`
	CacheRead  int `json:"cacheRead,omitempty"`
	CacheWrite int `json:"cacheWrite,omitempty"`
}

// BlockType tags a ContentBlock's variant.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a discriminated union; exactly the fields relevant to Type
// are meaningful. Blocks are plain data, never behavior — type switches on
// Type select the fields to read.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text, thinking
	Text string `json:"text,omitempty"`

	// tool_use
	ToolUseID string         `json:"id,omitempty"`
	ToolName  string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseRefID string `json:"tool_use_id,omitempty"`
	Content      string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// TextBlock constructs a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock constructs a thinking content block.
func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Text: text}
}

// ToolUseBlock constructs a tool_use content block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// ToolResultBlock constructs a tool_result content block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseRefID: toolUseID, Content: content, IsError: isError}
}

// ToolUseBlocks returns the tool_use blocks of an assistant message, in
// content order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResultIDs returns the set of tool_use_id values carried by tool_result
// blocks in this message.
func (m Message) ToolResultIDs() map[string]ContentBlock {
	out := make(map[string]ContentBlock)
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			out[b.ToolUseRefID] = b
		}
	}
	return out
}
