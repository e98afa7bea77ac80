package mcp

import "encoding/json"

// Config describes one MCP server to connect to.
type Config struct {
	Enabled     bool              `json:"enabled"`
	Type        TransportType     `json:"type"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Timeout     int               `json:"timeout,omitempty"` // milliseconds
}

// TransportType selects how the client talks to the server.
type TransportType string

const (
	TransportTypeRemote TransportType = "remote" // SSE over HTTP
	TransportTypeLocal  TransportType = "local"   // subprocess over stdio
	TransportTypeStdio  TransportType = "stdio"
)

// DefaultTimeout is used when a Config doesn't set one.
const DefaultTimeout = 10 * 1000 // milliseconds

// Tool describes one tool an MCP server exposes, already adapted to a
// plain JSON-schema map so callers outside this package never need to
// import mark3labs/mcp-go themselves.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Status is the connection state of one configured server.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisabled     Status = "disabled"
	StatusFailed       Status = "failed"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// ServerStatus reports one server's health for diagnostics/status surfaces.
type ServerStatus struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	ToolCount int     `json:"toolCount"`
	Error     *string `json:"error,omitempty"`
}

// ProtocolVersion is the MCP protocol version this client negotiates.
const ProtocolVersion = "2024-11-05"

// marshalRoundTrip converts an arbitrary JSON-marshalable schema value into
// a plain map, the shape types.ToolDescriptor expects.
func marshalRoundTrip(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
