package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Client manages connections to zero or more named MCP servers and
// presents their tools as a single, name-prefixed namespace.
type Client struct {
	mu      sync.RWMutex
	servers map[string]*server
}

// server is one connected (or failed, or disabled) MCP server.
type server struct {
	name   string
	config *Config
	conn   *mcpclient.Client
	tools  []Tool
	status Status
	err    string
}

// NewClient creates an empty multi-server MCP client.
func NewClient() *Client {
	return &Client{servers: make(map[string]*server)}
}

// AddServer connects to name per config, or records it as disabled if
// config.Enabled is false. A failed connection is recorded with
// StatusFailed rather than causing AddServer's caller to abort wiring the
// remaining servers.
func (c *Client) AddServer(ctx context.Context, name string, config *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("mcp: server already added: %s", name)
	}

	if !config.Enabled {
		c.servers[name] = &server{name: name, config: config, status: StatusDisabled}
		return nil
	}

	srv, err := connect(ctx, name, config)
	if err != nil {
		c.servers[name] = &server{name: name, config: config, status: StatusFailed, err: err.Error()}
		return err
	}
	c.servers[name] = srv
	return nil
}

func connect(ctx context.Context, name string, config *Config) (*server, error) {
	timeoutMS := config.Timeout
	if timeoutMS == 0 {
		timeoutMS = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	conn, err := dial(config)
	if err != nil {
		return nil, fmt.Errorf("mcp: dial %s: %w", name, err)
	}

	if err := conn.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: start %s: %w", name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "opencode", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = ProtocolVersion
	if _, err := conn.Initialize(ctx, initReq); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcp: initialize %s: %w", name, err)
	}

	listResp, err := conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcp: list tools %s: %w", name, err)
	}

	tools := make([]Tool, len(listResp.Tools))
	for i, t := range listResp.Tools {
		tools[i] = Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: marshalRoundTrip(t.InputSchema),
		}
	}

	return &server{name: name, config: config, conn: conn, tools: tools, status: StatusConnected}, nil
}

// dial picks the mcp-go transport for config.Type and returns an
// un-started client.
func dial(config *Config) (*mcpclient.Client, error) {
	switch config.Type {
	case TransportTypeLocal, TransportTypeStdio:
		if len(config.Command) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		return mcpclient.NewStdioMCPClient(config.Command[0], envSlice(config.Environment), config.Command[1:]...)

	case TransportTypeRemote:
		if config.URL == "" {
			return nil, fmt.Errorf("empty url")
		}
		return mcpclient.NewSSEMCPClient(config.URL, transport.WithHeaders(config.Headers))

	default:
		return nil, fmt.Errorf("unknown transport type: %s", config.Type)
	}
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return os.Environ()
	}
	out := os.Environ()
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// Tools returns every tool from every connected server, each name
// prefixed with its owning server's sanitized name so two servers can
// both expose a tool called, say, "search".
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Tool
	for name, srv := range c.servers {
		if srv.status != StatusConnected {
			continue
		}
		prefix := sanitize(name) + "_"
		for _, t := range srv.tools {
			out = append(out, Tool{
				Name:        prefix + sanitize(t.Name),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return out
}

// CallTool invokes a prefixed tool name (as returned from Tools) with
// args, returning the concatenated text content of the result. An
// IsError result is surfaced as a non-nil error.
func (c *Client) CallTool(ctx context.Context, prefixedName string, args map[string]any) (string, error) {
	c.mu.RLock()
	srv, originalName := c.resolve(prefixedName)
	c.mu.RUnlock()

	if srv == nil {
		return "", fmt.Errorf("mcp: no server exposes tool %q", prefixedName)
	}
	if srv.conn == nil {
		return "", fmt.Errorf("mcp: server %s is not connected", srv.name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = originalName
	req.Params.Arguments = args

	resp, err := srv.conn.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp: call %s: %w", prefixedName, err)
	}

	text := collectText(resp.Content)
	if resp.IsError {
		if text == "" {
			text = "tool execution failed"
		}
		return "", fmt.Errorf("mcp: %s: %s", prefixedName, text)
	}
	return text, nil
}

func collectText(content []mcp.Content) string {
	var b strings.Builder
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resolve must be called with c.mu held (read lock suffices).
func (c *Client) resolve(prefixedName string) (*server, string) {
	for name, srv := range c.servers {
		if srv.status != StatusConnected {
			continue
		}
		prefix := sanitize(name) + "_"
		if !strings.HasPrefix(prefixedName, prefix) {
			continue
		}
		sanitizedWant := strings.TrimPrefix(prefixedName, prefix)
		for _, t := range srv.tools {
			if sanitize(t.Name) == sanitizedWant {
				return srv, t.Name
			}
		}
	}
	return nil, ""
}

// Status reports every configured server's health.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ServerStatus, 0, len(c.servers))
	for name, srv := range c.servers {
		s := ServerStatus{Name: name, Status: srv.status, ToolCount: len(srv.tools)}
		if srv.err != "" {
			s.Error = &srv.err
		}
		out = append(out, s)
	}
	return out
}

// GetServer reports one server's status by name.
func (c *Client) GetServer(name string) (ServerStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	srv, ok := c.servers[name]
	if !ok {
		return ServerStatus{}, fmt.Errorf("mcp: server not found: %s", name)
	}
	s := ServerStatus{Name: name, Status: srv.status, ToolCount: len(srv.tools)}
	if srv.err != "" {
		s.Error = &srv.err
	}
	return s, nil
}

// ConnectedCount returns how many configured servers are StatusConnected.
func (c *Client) ConnectedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, srv := range c.servers {
		if srv.status == StatusConnected {
			n++
		}
	}
	return n
}

// RemoveServer disconnects and forgets name.
func (c *Client) RemoveServer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srv, ok := c.servers[name]
	if !ok {
		return fmt.Errorf("mcp: server not found: %s", name)
	}
	if srv.conn != nil {
		srv.conn.Close()
	}
	delete(c.servers, name)
	return nil
}

// Close disconnects every server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, srv := range c.servers {
		if srv.conn != nil {
			srv.conn.Close()
		}
	}
	c.servers = make(map[string]*server)
	return nil
}

// ServerCount returns the number of configured servers, connected or not.
func (c *Client) ServerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.servers)
}

// sanitize replaces everything but ASCII letters/digits with underscore,
// so server and tool names can be joined into one registry key.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
