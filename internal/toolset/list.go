package toolset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xln3/forgeagent/pkg/types"
)

const listDescription = `Lists files and directories in a specified path.

- returns file names, types (file/directory), and sizes
- useful for exploring directory structure before reading specific files`

var listSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"path":   map[string]any{"type": "string", "description": "absolute path to the directory to list"},
		"ignore": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "glob patterns to ignore"},
	},
}

var defaultIgnorePatterns = []string{
	"node_modules/", "__pycache__/", ".git/", "dist/", "build/", "target/",
	"vendor/", "bin/", "obj/", ".idea/", ".vscode/", ".coverage", "coverage/",
	"tmp/", "temp/", ".cache/", "cache/", "logs/", ".venv/", "venv/", "env/",
}

type fileEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
}

// NewListDescriptor builds the list tool. Read-only and concurrency-safe.
func NewListDescriptor() *types.ToolDescriptor {
	return syncDescriptor("list", listDescription, listSchema, true, true, runList)
}

func runList(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
	listPath := workDirOf(tc)
	if p := strInput(input, "path"); p != "" {
		if filepath.IsAbs(p) {
			listPath = p
		} else {
			listPath = filepath.Join(listPath, p)
		}
	}

	ignorePatterns := append([]string{}, defaultIgnorePatterns...)
	if raw, ok := input["ignore"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				ignorePatterns = append(ignorePatterns, s)
			}
		}
	}

	entries, err := os.ReadDir(listPath)
	if err != nil {
		return nil, "", fmt.Errorf("read directory: %w", err)
	}

	var files []fileEntry
	for _, entry := range entries {
		if shouldIgnore(entry.Name(), entry.IsDir(), ignorePatterns) {
			continue
		}
		info, _ := entry.Info()
		size := int64(0)
		if info != nil {
			size = info.Size()
		}
		files = append(files, fileEntry{Name: entry.Name(), IsDirectory: entry.IsDir(), Size: size})
	}

	var sb strings.Builder
	for _, f := range files {
		typeStr := "file"
		if f.IsDirectory {
			typeStr = "dir "
		}
		sb.WriteString(fmt.Sprintf("[%s] %s", typeStr, f.Name))
		if !f.IsDirectory {
			sb.WriteString(fmt.Sprintf(" (%d bytes)", f.Size))
		}
		sb.WriteString("\n")
	}

	return map[string]any{"path": listPath, "count": len(files)}, sb.String(), nil
}

func shouldIgnore(name string, isDir bool, patterns []string) bool {
	checkName := name
	if isDir {
		checkName = name + "/"
	}
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if isDir && (checkName == pattern || name == strings.TrimSuffix(pattern, "/")) {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if isDir {
			if matched, _ := filepath.Match(pattern, checkName); matched {
				return true
			}
		}
	}
	return false
}
