package mcpgw

import (
	"context"
	"encoding/json"
	"time"
)

// gatewayVersion is the client identity advertised during every outbound MCP
// initialize handshake (C1); the reexporter package declares its own copy
// for the server identity it advertises (C6).
const gatewayVersion = "0.1.0"

// withTimeout derives a bounded context from ctx for a single handshake or
// call. A non-positive seconds value means "use the parent's own deadline,
// if any"; with no parent deadline the derived context has none either.
func withTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// ToolDescriptor is the metadata of a single tool exposed by an upstream MCP
// server, as seen by a Toolkit.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	ServerName  string // weak back-reference; never used to look the server up
}

// conn is the shared shape both transport drivers (C1) implement: a live
// session to exactly one upstream MCP server. A conn is owned exclusively by
// the ServerSession that opened it; nothing else ever closes it.
type conn interface {
	// listTools returns the live tool catalog of the upstream server.
	listTools(ctx context.Context) ([]ToolDescriptor, error)
	// callTool invokes a named tool with JSON-decoded arguments and returns
	// its concatenated text content.
	callTool(ctx context.Context, name string, args map[string]any) (string, error)
	// close releases the connection and any OS resources (child process,
	// HTTP connection). Always safe to call, even after a failed open.
	close() error
}

// dialer opens a conn for a given ServerParams. Each transport variant
// implements exactly one dialer; dialFor selects between them.
type dialer func(ctx context.Context, p *ServerParams) (conn, error)

func dialFor(ctx context.Context, p *ServerParams) (conn, error) {
	switch p.Transport {
	case TransportStdio:
		return dialStdio(ctx, p)
	case TransportHTTP:
		return dialHTTP(ctx, p)
	default:
		return nil, errInvalidConfig(p.Name, "unknown transport", nil)
	}
}
