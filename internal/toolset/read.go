package toolset

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xln3/forgeagent/pkg/types"
)

const readDescription = `Reads a file from the local filesystem.

- filePath must be absolute
- by default reads up to 2000 lines from the start; offset/limit paginate
- returns line-numbered text wrapped in <file> tags, or a base64 attachment for images`

var readSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"filePath": map[string]any{"type": "string", "description": "absolute path to the file to read"},
		"offset":   map[string]any{"type": "integer", "description": "line number to start reading from"},
		"limit":    map[string]any{"type": "integer", "description": "number of lines to read, default 2000"},
	},
	"required": []any{"filePath"},
}

// NewReadDescriptor builds the read tool. Read-only and concurrency-safe
// unconditionally, so it fans out freely alongside Grep/Glob/List.
func NewReadDescriptor() *types.ToolDescriptor {
	return syncDescriptor("read", readDescription, readSchema, true, true, runRead)
}

func runRead(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
	path := strInput(input, "filePath")
	limit := intInput(input, "limit")
	if limit <= 0 {
		limit = 2000
	}
	offset := intInput(input, "offset")

	if shouldBlockEnvFile(path) {
		return nil, "", fmt.Errorf("reading %s is blocked, do not retry", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("path is a directory, not a file: %s", path)
	}

	if isImageFile(path) {
		return readImage(path)
	}
	if isBinaryFile(path) {
		return nil, "", fmt.Errorf("file appears to be binary: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if offset > 0 && lineNum < offset {
			continue
		}
		if len(lines) >= limit {
			break
		}
		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))
	lastReadLine := offset + len(lines)
	if lineNum > lastReadLine {
		sb.WriteString(fmt.Sprintf("\n\n(file has more lines; use offset to continue past line %d)", lastReadLine))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(end of file - total %d lines)", lineNum))
	}
	sb.WriteString("\n</file>")

	if tc != nil && tc.FileReadTimestamps != nil {
		tc.FileReadTimestamps[path] = time.Now().Unix()
	}

	return map[string]any{"file": path, "lines": len(lines), "totalLines": lineNum}, sb.String(), nil
}

func readImage(path string) (any, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	mediaType := detectMediaType(path)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	return map[string]any{"file": path, "mediaType": mediaType, "url": dataURL}, "(image file)", nil
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}
	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}

func detectMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func shouldBlockEnvFile(path string) bool {
	for _, w := range []string{".env.sample", ".example"} {
		if strings.HasSuffix(path, w) {
			return false
		}
	}
	return strings.Contains(path, ".env")
}
