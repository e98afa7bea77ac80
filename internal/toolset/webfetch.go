package toolset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/pkg/types"
)

const webfetchDescription = `Fetches content from a specified URL and returns it in the requested format.

- the URL must be a fully-formed valid URL starting with http:// or https://
- read-only; does not modify any files
- responses larger than 5MB are rejected with an error
- format "markdown" for readable content, "text" for plain text, "html" for raw HTML`

var webfetchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url":     map[string]any{"type": "string", "description": "URL to fetch content from"},
		"format":  map[string]any{"type": "string", "enum": []any{"text", "markdown", "html"}},
		"timeout": map[string]any{"type": "integer", "description": "timeout in seconds, max 120"},
	},
	"required": []any{"url", "format"},
}

const (
	maxFetchResponseSize = 5 * 1024 * 1024
	defaultFetchTimeout  = 30 * time.Second
	maxFetchTimeout      = 120 * time.Second
)

var fetchClient = &http.Client{}

// NewWebFetchDescriptor builds the web fetch tool. Read-only and
// concurrency-safe (it touches the network, not shared local state).
// checker may be nil to run unchecked.
func NewWebFetchDescriptor(checker *permission.Checker, action permission.PermissionAction) *types.ToolDescriptor {
	return syncDescriptor("webfetch", webfetchDescription, webfetchSchema, true, true, func(ctx context.Context, tc *types.ToolContext, input map[string]any) (any, string, error) {
		return runWebFetch(ctx, tc, input, checker, action)
	})
}

func runWebFetch(ctx context.Context, tc *types.ToolContext, input map[string]any, checker *permission.Checker, action permission.PermissionAction) (any, string, error) {
	url := strInput(input, "url")
	format := strInput(input, "format")
	timeoutSec := intInput(input, "timeout")

	if checker != nil {
		if err := checker.Check(ctx, permission.Request{
			Type: permission.PermWebFetch, SessionID: tc.SessionID, CallID: tc.CallID,
			Title: url, Metadata: map[string]any{"url": url},
		}, action); err != nil {
			return nil, "", err
		}
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", fmt.Errorf("url must start with http:// or https://")
	}
	if format != "text" && format != "markdown" && format != "html" {
		return nil, "", fmt.Errorf("format must be 'text', 'markdown', or 'html'")
	}

	timeout := defaultFetchTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
		if timeout > maxFetchTimeout {
			timeout = maxFetchTimeout
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; forgeagent)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	switch format {
	case "markdown":
		req.Header.Set("Accept", "text/markdown;q=1.0, text/plain;q=0.8, text/html;q=0.7, */*;q=0.1")
	case "text":
		req.Header.Set("Accept", "text/plain;q=1.0, text/html;q=0.8, */*;q=0.1")
	case "html":
		req.Header.Set("Accept", "text/html;q=1.0, application/xhtml+xml;q=0.9, */*;q=0.1")
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxFetchResponseSize {
		return nil, "", fmt.Errorf("response too large (exceeds 5MB limit)")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchResponseSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxFetchResponseSize {
		return nil, "", fmt.Errorf("response too large (exceeds 5MB limit)")
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	var output string
	switch format {
	case "markdown":
		if strings.Contains(contentType, "text/html") {
			if output, err = convertHTMLToMarkdown(content); err != nil {
				return nil, "", fmt.Errorf("convert to markdown: %w", err)
			}
		} else {
			output = content
		}
	case "text":
		if strings.Contains(contentType, "text/html") {
			if output, err = extractTextFromHTML(content); err != nil {
				return nil, "", fmt.Errorf("extract text: %w", err)
			}
		} else {
			output = content
		}
	default:
		output = content
	}

	return map[string]any{"url": url, "contentType": contentType}, output, nil
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
