package toolset

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/xln3/forgeagent/pkg/types"
)

const grepDescription = `A powerful content search tool built on ripgrep.

- supports full regex syntax (e.g. "log.*Error", "function\s+\w+")
- filter files with the include parameter (e.g. "*.js", "**/*.tsx")
- returns matching lines with file paths and line numbers, capped at 100 matches`

var grepSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"pattern": map[string]any{"type": "string", "description": "regex pattern to search for"},
		"path":    map[string]any{"type": "string", "description": "directory to search in"},
		"include": map[string]any{"type": "string", "description": "file glob to include, e.g. \"*.go\""},
	},
	"required": []any{"pattern"},
}

const maxGrepMatches = 100

type grepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// NewGrepDescriptor builds the grep tool. Read-only and concurrency-safe.
func NewGrepDescriptor() *types.ToolDescriptor {
	return syncDescriptor("grep", grepDescription, grepSchema, true, true, runGrep)
}

func runGrep(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
	pattern := strInput(input, "pattern")
	include := strInput(input, "include")
	searchPath := strInput(input, "path")
	if searchPath == "" {
		searchPath = workDirOf(tc)
	}

	args := []string{"--line-number", "--with-filename", "--color=never"}
	if include != "" {
		args = append(args, "--glob", include)
	}
	args = append(args, pattern, searchPath)

	cmd := exec.CommandContext(ctx, "rg", args...)
	output, _ := cmd.Output()
	if len(output) == 0 {
		return map[string]any{"pattern": pattern, "count": 0}, "no matches found", nil
	}

	var matches []grepMatch
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		lineNum, _ := strconv.Atoi(parts[1])
		matches = append(matches, grepMatch{File: parts[0], Line: lineNum, Content: parts[2]})
	}

	truncated := false
	if len(matches) > maxGrepMatches {
		matches = matches[:maxGrepMatches]
		truncated = true
	}

	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("%s:%d: %s\n", m.File, m.Line, m.Content))
	}
	if truncated {
		sb.WriteString(fmt.Sprintf("\n(showing %d of more matches)", maxGrepMatches))
	}

	return map[string]any{"pattern": pattern, "count": len(matches), "truncated": truncated}, sb.String(), nil
}
