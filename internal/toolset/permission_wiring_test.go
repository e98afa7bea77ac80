package toolset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/pkg/types"
)

func callDescriptor(t *testing.T, d *types.ToolDescriptor, tc *types.ToolContext, input map[string]any) types.ToolResult {
	t.Helper()
	events, err := d.Call(context.Background(), tc, input)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var last types.ToolResult
	for ev := range events {
		if ev.Type == types.ToolEventResult {
			last = ev.Result
		}
	}
	return last
}

func TestWriteDescriptorDeniedByPermission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	d := NewWriteDescriptor(permission.NewChecker(), permission.ActionDeny)
	res := callDescriptor(t, d, &types.ToolContext{SessionID: "s1"}, map[string]any{"filePath": path, "content": "hi"})

	if res.Err == nil {
		t.Fatal("expected permission denial error")
	}
	if !permission.IsRejectedError(res.Err) {
		t.Fatalf("expected a RejectedError, got %v", res.Err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("file should not have been written")
	}
}

func TestWriteDescriptorAllowedByPermission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	d := NewWriteDescriptor(permission.NewChecker(), permission.ActionAllow)
	res := callDescriptor(t, d, &types.ToolContext{SessionID: "s1"}, map[string]any{"filePath": path, "content": "hi"})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to be written: %v", err)
	}
}

func TestWriteDescriptorNilCheckerSkipsPermission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	d := NewWriteDescriptor(nil, permission.ActionDeny)
	res := callDescriptor(t, d, &types.ToolContext{SessionID: "s1"}, map[string]any{"filePath": path, "content": "hi"})

	if res.Err != nil {
		t.Fatalf("unexpected error with nil checker: %v", res.Err)
	}
}

func TestEditDescriptorDeniedByPermission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	d := NewEditDescriptor(permission.NewChecker(), permission.ActionDeny)
	tc := &types.ToolContext{SessionID: "s1", FileReadTimestamps: map[string]int64{}}
	res := callDescriptor(t, d, tc, map[string]any{"filePath": path, "oldString": "hello", "newString": "world"})

	if res.Err == nil || !permission.IsRejectedError(res.Err) {
		t.Fatalf("expected a RejectedError, got %v", res.Err)
	}
}

func TestWebFetchDescriptorDeniedByPermission(t *testing.T) {
	d := NewWebFetchDescriptor(permission.NewChecker(), permission.ActionDeny)
	tc := &types.ToolContext{SessionID: "s1"}
	res := callDescriptor(t, d, tc, map[string]any{"url": "https://example.com", "format": "text"})

	if res.Err == nil || !permission.IsRejectedError(res.Err) {
		t.Fatalf("expected a RejectedError, got %v", res.Err)
	}
}
