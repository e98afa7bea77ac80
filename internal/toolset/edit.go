package toolset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/xln3/forgeagent/internal/event"
	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/pkg/types"
)

const editDescription = `Performs an exact (or near-exact) string replacement in a file.

- filePath must be absolute
- oldString must exist in the file; fails if ambiguous unless replaceAll is set
- falls back to line-ending-normalized and fuzzy matching when the exact text has drifted`

var editSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"filePath":   map[string]any{"type": "string", "description": "absolute path to the file to edit"},
		"oldString":  map[string]any{"type": "string", "description": "exact text to replace"},
		"newString":  map[string]any{"type": "string", "description": "replacement text"},
		"replaceAll": map[string]any{"type": "boolean", "description": "replace every occurrence, default false"},
	},
	"required": []any{"filePath", "oldString", "newString"},
}

// NewEditDescriptor builds the edit tool: not read-only, not
// concurrency-safe. checker may be nil to run unchecked (tests, headless
// automation that has already scoped the workspace).
func NewEditDescriptor(checker *permission.Checker, action permission.PermissionAction) *types.ToolDescriptor {
	return syncDescriptor("edit", editDescription, editSchema, false, false, func(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
		return runEdit(ctx, tc, input, checker, action)
	})
}

func runEdit(ctx context.Context, tc *types.ToolContext, input map[string]any, checker *permission.Checker, action permission.PermissionAction) (any, string, error) {
	path := strInput(input, "filePath")
	oldString := strInput(input, "oldString")
	newString := strInput(input, "newString")
	replaceAll := boolInput(input, "replaceAll")

	if checker != nil {
		if err := checker.Check(ctx, permission.Request{
			Type: permission.PermEdit, SessionID: tc.SessionID, CallID: tc.CallID,
			Title: path, Metadata: map[string]any{"filePath": path},
		}, action); err != nil {
			return nil, "", err
		}
	}

	if oldString == newString {
		return nil, "", fmt.Errorf("oldString and newString must be different")
	}
	if err := requireReadBeforeWrite(tc, path); err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	before := string(raw)

	after, count, err := applyReplacement(before, oldString, newString, replaceAll)
	if err != nil {
		return nil, "", err
	}

	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return nil, "", fmt.Errorf("write file: %w", err)
	}
	touchReadTimestamp(tc, path)
	if tc != nil && tc.SessionID != "" {
		event.Publish(event.Event{Type: event.FileEdited, Data: event.FileEditedData{File: path}})
	}

	diffText, additions, deletions := buildDiffMetadata(path, before, after, workDirOf(tc))
	_ = diffText

	return map[string]any{"file": path, "replacements": count, "additions": additions, "deletions": deletions},
		fmt.Sprintf("replaced %d occurrence(s)", count), nil
}

// applyReplacement tries an exact match, then a line-ending-normalized
// match, then the closest fuzzy block above a similarity threshold.
func applyReplacement(text, oldString, newString string, replaceAll bool) (string, int, error) {
	if count := strings.Count(text, oldString); count > 0 {
		if replaceAll {
			return strings.ReplaceAll(text, oldString, newString), count, nil
		}
		if count > 1 {
			return "", 0, fmt.Errorf("oldString appears %d times; use replaceAll or add more context", count)
		}
		return strings.Replace(text, oldString, newString, 1), 1, nil
	}

	normalizedOld := normalizeLineEndings(oldString)
	normalizedText := normalizeLineEndings(text)
	if strings.Contains(normalizedText, normalizedOld) {
		return strings.Replace(normalizedText, normalizedOld, newString, 1), 1, nil
	}

	match, sim := findBestMatch(text, oldString)
	if match != "" && sim >= 0.7 {
		return strings.Replace(text, match, newString, 1), 1, nil
	}

	return "", 0, fmt.Errorf("oldString not found in file; the content may have changed")
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	if len(targetLines) == 1 {
		best, bestSim := "", 0.0
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSim {
				bestSim, best = sim, line
			}
		}
		return best, bestSim
	}

	targetLen := len(targetLines)
	best, bestSim := "", 0.0
	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > bestSim {
			bestSim, best = sim, block
		}
	}
	return best, bestSim
}

func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > 10000 || len(b) > 10000 {
		maxLen, minLen := max(len(a), len(b)), min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}

func touchReadTimestamp(tc *types.ToolContext, path string) {
	if tc != nil && tc.FileReadTimestamps != nil {
		if info, err := os.Stat(path); err == nil {
			tc.FileReadTimestamps[path] = info.ModTime().Unix()
		}
	}
}

func workDirOf(tc *types.ToolContext) string {
	if tc == nil {
		return ""
	}
	return tc.WorkDir
}
