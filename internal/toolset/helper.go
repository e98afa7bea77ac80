// Package toolset holds the concrete leaf tools exposed to the model: file
// edit/read/write, grep, glob, list, shell, web fetch, and the todo
// scratchpad. Spec treats their exact behavior as out of scope, but the
// registry needs real occupants to exercise internal/toolexec, so each is
// adapted from the teacher's tool implementations onto the
// types.ToolDescriptor contract.
package toolset

import (
	"context"

	"github.com/xln3/forgeagent/pkg/types"
)

func constPredicate(v bool) func(map[string]any) bool {
	return func(map[string]any) bool { return v }
}

// runFunc is the body of a tool whose call has no intermediate progress: it
// runs to completion and produces one terminal result or an error.
type runFunc func(ctx context.Context, tc *types.ToolContext, input map[string]any) (data any, rendered string, err error)

// syncDescriptor builds a ToolDescriptor around a runFunc, handling the
// lazy-sequence/terminal-result plumbing the tool contract requires (see
// pkg/types.ToolDescriptor.Call) so each leaf tool only writes its actual
// logic.
func syncDescriptor(name, description string, schema map[string]any, isReadOnly, isConcurrencySafe bool, run runFunc) *types.ToolDescriptor {
	return &types.ToolDescriptor{
		Name:              name,
		Description:       description,
		Schema:            schema,
		IsReadOnly:        constPredicate(isReadOnly),
		IsConcurrencySafe: constPredicate(isConcurrencySafe),
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)
			go func() {
				defer close(ch)
				data, rendered, err := run(ctx, tc, input)
				ch <- types.ToolEvent{
					Type: types.ToolEventResult,
					Result: types.ToolResult{
						Data:               data,
						ResultForAssistant: rendered,
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

func strInput(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func intInput(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolInput(input map[string]any, key string) bool {
	v, _ := input[key].(bool)
	return v
}
