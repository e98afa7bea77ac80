package toolset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xln3/forgeagent/internal/event"
	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/pkg/types"
)

const writeDescription = `Writes content to a file, overwriting it if present.

- filePath must be absolute
- parent directories are created if missing
- prefer editing an existing file over recreating it wholesale`

var writeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"filePath": map[string]any{"type": "string", "description": "absolute path to the file to write"},
		"content":  map[string]any{"type": "string", "description": "content to write"},
	},
	"required": []any{"filePath", "content"},
}

// NewWriteDescriptor builds the write tool: not read-only, not
// concurrency-safe, since it mutates shared filesystem state the
// executor's read-only fan-out must not run alongside. checker may be nil
// to run unchecked (tests, headless automation that has already scoped
// the workspace).
func NewWriteDescriptor(checker *permission.Checker, action permission.PermissionAction) *types.ToolDescriptor {
	return syncDescriptor("write", writeDescription, writeSchema, false, false, func(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
		return runWrite(ctx, tc, input, checker, action)
	})
}

func runWrite(ctx context.Context, tc *types.ToolContext, input map[string]any, checker *permission.Checker, action permission.PermissionAction) (any, string, error) {
	path := strInput(input, "filePath")
	content := strInput(input, "content")

	if checker != nil {
		if err := checker.Check(ctx, permission.Request{
			Type: permission.PermEdit, SessionID: tc.SessionID, CallID: tc.CallID,
			Title: path, Metadata: map[string]any{"filePath": path},
		}, action); err != nil {
			return nil, "", err
		}
	}

	if err := requireReadBeforeWrite(tc, path); err != nil {
		return nil, "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, "", fmt.Errorf("write file: %w", err)
	}

	if tc != nil && tc.FileReadTimestamps != nil {
		tc.FileReadTimestamps[path] = time.Now().Unix()
	}
	if tc != nil && tc.SessionID != "" {
		event.Publish(event.Event{Type: event.FileEdited, Data: event.FileEditedData{File: path}})
	}

	return map[string]any{"file": path, "bytes": len(content)},
		fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

// requireReadBeforeWrite enforces the read-before-write guard: an existing
// file must have been read by this loop (its mtime not newer than the
// recorded read timestamp) before it can be overwritten.
func requireReadBeforeWrite(tc *types.ToolContext, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file does not exist yet; nothing to guard
	}
	if tc == nil || tc.FileReadTimestamps == nil {
		return nil
	}
	readAt, ok := tc.FileReadTimestamps[path]
	if !ok || info.ModTime().Unix() > readAt {
		return fmt.Errorf("file %s must be read before it is overwritten", path)
	}
	return nil
}
