package toolset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xln3/forgeagent/internal/event"
	"github.com/xln3/forgeagent/internal/filestore"
	"github.com/xln3/forgeagent/pkg/types"
)

const todowriteDescription = `Creates and manages a structured task list for the current session.

Use it proactively for multi-step work: keep exactly one todo in_progress at
a time, mark items completed immediately after finishing them, and drop
items that turn out not to be needed rather than leaving them stale.`

var todowriteSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"todos": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":       map[string]any{"type": "string"},
					"content":  map[string]any{"type": "string"},
					"status":   map[string]any{"type": "string", "enum": []any{"pending", "in_progress", "completed"}},
					"priority": map[string]any{"type": "string", "enum": []any{"high", "medium", "low"}},
				},
				"required": []any{"id", "content", "status", "priority"},
			},
		},
	},
	"required": []any{"todos"},
}

// NewTodoWriteDescriptor builds the todowrite tool, backed by store. Not
// read-only, not concurrency-safe (it mutates the session's shared
// scratchpad).
func NewTodoWriteDescriptor(store *filestore.Store) *types.ToolDescriptor {
	run := func(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
		todos, err := decodeTodos(input)
		if err != nil {
			return nil, "", err
		}
		if tc == nil || tc.SessionID == "" {
			return nil, "", fmt.Errorf("todowrite requires an active session")
		}

		if err := store.Put(todoKey(tc.SessionID), todos); err != nil {
			return nil, "", fmt.Errorf("save todos: %w", err)
		}

		event.Publish(event.Event{
			Type: event.TodoUpdated,
			Data: event.TodoUpdatedData{SessionID: tc.SessionID, Todos: todos},
		})

		nonCompleted := 0
		for _, t := range todos {
			if t.Status != types.TodoCompleted {
				nonCompleted++
			}
		}

		out, _ := json.MarshalIndent(todos, "", "  ")
		return map[string]any{"todos": todos, "pending": nonCompleted}, string(out), nil
	}
	return syncDescriptor("todowrite", todowriteDescription, todowriteSchema, false, false, run)
}

func decodeTodos(input map[string]any) ([]types.TodoInfo, error) {
	raw, ok := input["todos"]
	if !ok {
		return nil, fmt.Errorf("todos is required")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode todos: %w", err)
	}
	var todos []types.TodoInfo
	if err := json.Unmarshal(encoded, &todos); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	return todos, nil
}
