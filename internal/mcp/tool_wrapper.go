package mcp

import (
	"context"

	"github.com/xln3/forgeagent/pkg/types"
)

// ToolDescriptors adapts every tool currently exposed by c's connected
// servers into the registry's types.ToolDescriptor contract, so they can
// be merged into a tool.Registry alongside the built-in toolset. MCP gives
// no read-only/concurrency-safety metadata, so descriptors are
// conservative: not read-only, not concurrency-safe.
func (c *Client) ToolDescriptors() []*types.ToolDescriptor {
	tools := c.Tools()
	out := make([]*types.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, c.descriptorFor(t))
	}
	return out
}

func (c *Client) descriptorFor(t Tool) *types.ToolDescriptor {
	name := t.Name
	return &types.ToolDescriptor{
		Name:              name,
		Description:       t.Description,
		Schema:            t.InputSchema,
		IsReadOnly:        func(map[string]any) bool { return false },
		IsConcurrencySafe: func(map[string]any) bool { return false },
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)
			go func() {
				defer close(ch)
				output, err := c.CallTool(ctx, name, input)
				ch <- types.ToolEvent{
					Type: types.ToolEventResult,
					Result: types.ToolResult{
						Data:               output,
						ResultForAssistant: output,
						Err:                err,
					},
				}
			}()
			return ch, nil
		},
		Render: func(r types.ToolResult) string {
			if r.Err != nil {
				return r.Err.Error()
			}
			return r.ResultForAssistant
		},
	}
}
