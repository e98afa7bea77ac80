package types

import "context"

// ToolDescriptor is the uniform, erased shape every concrete tool publishes
// into the registry. The typed request/response of an individual tool stays
// internal to its own package; the registry and executor only ever see this.
type ToolDescriptor struct {
	Name        string
	Description string
	// Schema is a JSON-schema-shaped structural description of the input.
	Schema map[string]any

	// IsReadOnly and IsConcurrencySafe are capability predicates evaluated
	// against a specific input map, since a tool's safety can depend on its
	// arguments (e.g. Bash is read-only only for a known-safe command).
	IsReadOnly        func(input map[string]any) bool
	IsConcurrencySafe func(input map[string]any) bool

	// ValidateInput runs after schema validation; nil means no extra checks.
	ValidateInput func(ctx context.Context, input map[string]any) error

	// Call executes the tool and returns a lazy sequence of progress events
	// terminated by exactly one result event. See ToolEvent.
	Call func(ctx context.Context, tc *ToolContext, input map[string]any) (<-chan ToolEvent, error)

	// Render turns a terminal result into the assistant-visible string
	// placed in the tool_result content block.
	Render func(result ToolResult) string
}

// ToolEventType tags a ToolEvent.
type ToolEventType string

const (
	ToolEventProgress        ToolEventType = "progress"
	ToolEventStreamingOutput ToolEventType = "streaming_output"
	ToolEventResult          ToolEventType = "result"
)

// ToolEvent is one item of a tool call's lazy sequence. Exactly one terminal
// ToolEventResult must be sent before the channel closes; a channel that
// closes without one is a ToolExecutionError.
type ToolEvent struct {
	Type ToolEventType

	// progress / streaming_output
	Content string
	Line    string

	// result
	Result ToolResult
}

// ToolResult is the terminal payload of a tool call.
type ToolResult struct {
	Data               any
	ResultForAssistant string
	Err                error
}

// ToolContext is the request-scoped record threaded into every tool call.
type ToolContext struct {
	SessionID string
	MessageID string
	CallID    string

	// Cancel is tripped cooperatively; tools must observe it at natural
	// suspension points.
	Cancel <-chan struct{}

	WorkDir string

	// FileReadTimestamps is a read-before-write guard: read tools record a
	// timestamp on success, write tools check it before overwriting. Owned
	// by a single loop instance; never shared across loops.
	FileReadTimestamps map[string]int64

	// LLMConfig is forwarded to sub-agent spawns.
	LLMConfig map[string]any

	// OnMetadata streams tool-specific metadata to an observer (the Logger,
	// an IPC output buffer) without coupling the tool to either.
	OnMetadata func(key string, value any)
}

// IsAborted reports whether the context's cancellation token has tripped.
func (tc *ToolContext) IsAborted() bool {
	select {
	case <-tc.Cancel:
		return true
	default:
		return false
	}
}
