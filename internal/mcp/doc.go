// Package mcp connects to external Model Context Protocol servers and
// exposes their tools as an additional source for the tool registry (see
// internal/tool), matching spec's "out of scope: concrete leaf tools"
// framing — MCP tools are just another registry source, not a special
// case the agent loop knows about.
//
// Wire-protocol work (stdio framing, SSE, JSON-RPC envelopes, the
// initialize/list/call handshake) is delegated entirely to
// github.com/mark3labs/mcp-go; this package only adds multi-server
// bookkeeping (one mcp-go client per configured server, name-prefixed to
// avoid collisions) and the adaptation from mcp-go's Tool/CallToolResult
// shapes into types.ToolDescriptor.
//
// # Basic usage
//
//	client := mcp.NewClient()
//	err := client.AddServer(ctx, "fs", &mcp.Config{
//		Enabled: true,
//		Type:    mcp.TransportTypeStdio,
//		Command: []string{"npx", "@modelcontextprotocol/server-filesystem", "/tmp"},
//	})
//	for _, d := range client.ToolDescriptors() {
//		registry.Register(d)
//	}
//
// A failed AddServer still records the server (StatusFailed) so Status
// can report it; it does not prevent other configured servers from
// connecting.
package mcp
