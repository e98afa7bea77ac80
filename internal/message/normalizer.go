// Package message repairs a conversation's message list into the
// provider-facing form the agent loop sends on each turn: it drops
// bookkeeping-only progress messages and restores the tool_use/tool_result
// pairing invariant across an interruption.
package message

import (
	"errors"
	"fmt"

	"github.com/xln3/forgeagent/pkg/types"
)

// ErrNormalization is the sentinel wrapped by a NormalizationError.
var ErrNormalization = errors.New("message: normalization error")

// NormalizationError reports a structural violation in the message list
// that the normalizer cannot repair (an unknown block type, a tool_result
// with no enclosing user message). It is always fatal to the current turn.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("message: %s", e.Reason)
}

func (e *NormalizationError) Unwrap() error { return ErrNormalization }

const interruptedText = "Tool execution was interrupted"

// Normalize returns the provider-facing form of msgs. It never mutates the
// input slice or its messages; it returns a new slice built from shallow
// copies.
//
// Normalize is a fixed point: Normalize(Normalize(msgs)) produces content
// equal to Normalize(msgs), since a normalized sequence always has every
// tool_use id matched by the time Normalize returns.
func Normalize(msgs []types.Message) ([]types.Message, error) {
	out := make([]types.Message, 0, len(msgs))

	for i := 0; i < len(msgs); i++ {
		m := msgs[i]

		if m.Role == types.RoleProgress {
			continue
		}

		if err := validateBlocks(m); err != nil {
			return nil, err
		}

		if m.Role != types.RoleAssistant {
			out = append(out, m)
			continue
		}

		toolUses := m.ToolUseBlocks()
		if len(toolUses) == 0 {
			out = append(out, m)
			continue
		}

		matched, unmatched := scanForward(msgs[i+1:], toolUses)

		switch {
		case len(unmatched) == 0:
			out = append(out, m)

		case len(matched) == 0:
			repaired := dropToolUse(m)
			if repaired != nil {
				out = append(out, *repaired)
			}

		default:
			out = append(out, m)
			out = append(out, synthesizeInterrupted(m.SessionID, unmatched))
		}
	}

	return out, nil
}

// scanForward walks the messages following an assistant message up to (but
// not including) the next assistant message, collecting which of toolUses
// got a matching tool_result. It returns the matched ids and the remaining
// unmatched blocks, in their original order.
func scanForward(rest []types.Message, toolUses []types.ContentBlock) (matched map[string]bool, unmatched []types.ContentBlock) {
	matched = make(map[string]bool, len(toolUses))

	for _, m := range rest {
		if m.Role == types.RoleAssistant {
			break
		}
		if m.Role != types.RoleUser {
			continue
		}
		for id := range m.ToolResultIDs() {
			matched[id] = true
		}
	}

	for _, b := range toolUses {
		if !matched[b.ToolUseID] {
			unmatched = append(unmatched, b)
		}
	}
	return matched, unmatched
}

// dropToolUse removes tool_use blocks from an assistant message, keeping any
// text/thinking blocks. If nothing remains, it returns nil and the message
// is dropped entirely.
func dropToolUse(m types.Message) *types.Message {
	kept := make([]types.ContentBlock, 0, len(m.Content))
	for _, b := range m.Content {
		if b.Type != types.BlockToolUse {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	m.Content = kept
	return &m
}

// synthesizeInterrupted builds the repair message injected after a partial
// tool-use match: one is_error tool_result per still-unmatched id.
func synthesizeInterrupted(sessionID string, unmatched []types.ContentBlock) types.Message {
	blocks := make([]types.ContentBlock, 0, len(unmatched))
	for _, b := range unmatched {
		blocks = append(blocks, types.ToolResultBlock(b.ToolUseID, interruptedText, true))
	}
	return types.Message{
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   blocks,
	}
}

// validateBlocks rejects structurally malformed content: a block whose Type
// is empty, or a tool_result block outside a user message.
func validateBlocks(m types.Message) error {
	for _, b := range m.Content {
		switch b.Type {
		case types.BlockText, types.BlockThinking, types.BlockToolUse, types.BlockToolResult:
			// well-formed
		default:
			return &NormalizationError{Reason: fmt.Sprintf("unknown content block type %q", b.Type)}
		}
		if b.Type == types.BlockToolResult && m.Role != types.RoleUser {
			return &NormalizationError{Reason: "tool_result block outside a user message"}
		}
		if b.Type == types.BlockToolUse && m.Role != types.RoleAssistant {
			return &NormalizationError{Reason: "tool_use block outside an assistant message"}
		}
	}
	return nil
}
