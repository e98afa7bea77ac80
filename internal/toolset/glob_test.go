package toolset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xln3/forgeagent/pkg/types"
)

func TestGlobDescriptorMatchesNestedPattern(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "main.go"), "package main")
	mustWriteFile(t, filepath.Join(dir, "src", "a.ts"), "export {}")
	mustWriteFile(t, filepath.Join(dir, "src", "nested", "b.ts"), "export {}")
	mustWriteFile(t, filepath.Join(dir, "README.md"), "# hi")

	d := NewGlobDescriptor()
	res := callDescriptor(t, d, &types.ToolContext{WorkDir: dir}, map[string]any{"pattern": "**/*.ts"})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !strings.Contains(res.ResultForAssistant, filepath.Join("src", "a.ts")) {
		t.Errorf("expected src/a.ts in output, got %q", res.ResultForAssistant)
	}
	if !strings.Contains(res.ResultForAssistant, filepath.Join("src", "nested", "b.ts")) {
		t.Errorf("expected src/nested/b.ts in output, got %q", res.ResultForAssistant)
	}
	if strings.Contains(res.ResultForAssistant, "main.go") {
		t.Errorf("did not expect main.go to match **/*.ts, got %q", res.ResultForAssistant)
	}
}

func TestGlobDescriptorNoMatches(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "main.go"), "package main")

	d := NewGlobDescriptor()
	res := callDescriptor(t, d, &types.ToolContext{WorkDir: dir}, map[string]any{"pattern": "*.rs"})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.ResultForAssistant != "no files matched the pattern" {
		t.Errorf("expected the no-match message, got %q", res.ResultForAssistant)
	}
}

func TestGlobDescriptorRejectsInvalidPattern(t *testing.T) {
	dir := t.TempDir()

	d := NewGlobDescriptor()
	res := callDescriptor(t, d, &types.ToolContext{WorkDir: dir}, map[string]any{"pattern": "[", "path": "."})

	if res.Err == nil {
		t.Fatal("expected an error for a malformed glob pattern")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
