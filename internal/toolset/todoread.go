package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xln3/forgeagent/internal/filestore"
	"github.com/xln3/forgeagent/pkg/types"
)

const todoreadDescription = `Reads the current todo scratchpad for this session.`

var todoreadSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

// NewTodoReadDescriptor builds the todoread tool, backed by store. Read-only
// and concurrency-safe.
func NewTodoReadDescriptor(store *filestore.Store) *types.ToolDescriptor {
	run := func(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
		todos, err := loadTodos(store, tc)
		if err != nil {
			return nil, "", err
		}

		nonCompleted := 0
		for _, t := range todos {
			if t.Status != types.TodoCompleted {
				nonCompleted++
			}
		}

		out, _ := json.MarshalIndent(todos, "", "  ")
		return map[string]any{"todos": todos, "pending": nonCompleted}, string(out), nil
	}
	return syncDescriptor("todoread", todoreadDescription, todoreadSchema, true, true, run)
}

func loadTodos(store *filestore.Store, tc *types.ToolContext) ([]types.TodoInfo, error) {
	var todos []types.TodoInfo
	if tc == nil || tc.SessionID == "" {
		return todos, nil
	}
	err := store.Get(todoKey(tc.SessionID), &todos)
	if errors.Is(err, filestore.ErrNotFound) {
		return []types.TodoInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}
	return todos, nil
}

func todoKey(sessionID string) string {
	return "todo-" + sessionID
}
