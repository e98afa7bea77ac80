package toolset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/xln3/forgeagent/pkg/types"
)

const globDescription = `Fast file pattern matching tool that works with any codebase size.

- supports glob patterns like "**/*.js" or "src/**/*.ts"
- returns matching file paths, capped at 100 entries
- use this tool when you need to find files by name pattern`

var globSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"pattern": map[string]any{"type": "string", "description": "glob pattern to match files against"},
		"path":    map[string]any{"type": "string", "description": "directory to search in (default: current directory)"},
	},
	"required": []any{"pattern"},
}

const maxGlobFiles = 100

// NewGlobDescriptor builds the glob tool. Read-only and concurrency-safe.
func NewGlobDescriptor() *types.ToolDescriptor {
	return syncDescriptor("glob", globDescription, globSchema, true, true, runGlob)
}

func runGlob(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
	pattern := strInput(input, "pattern")
	searchDir := workDirOf(tc)
	if p := strInput(input, "path"); p != "" {
		if filepath.IsAbs(p) {
			searchDir = p
		} else {
			searchDir = filepath.Join(searchDir, p)
		}
	}

	matches, err := doublestar.Glob(os.DirFS(searchDir), pattern)
	if err != nil {
		return nil, "", fmt.Errorf("glob: invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return map[string]any{"pattern": pattern, "count": 0}, "no files matched the pattern", nil
	}

	files := make([]string, 0, len(matches))
	for _, f := range matches {
		if info, err := os.Stat(filepath.Join(searchDir, f)); err == nil && info.IsDir() {
			continue
		}
		files = append(files, f)
	}

	truncated := false
	if len(files) > maxGlobFiles {
		files = files[:maxGlobFiles]
		truncated = true
	}

	out := strings.Join(files, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(showing %d of more files)", maxGlobFiles)
	}

	return map[string]any{"pattern": pattern, "count": len(files), "truncated": truncated}, out, nil
}
