package mcpgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_transport "github.com/mark3labs/mcp-go/client/transport"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
)

// httpConn is the C1 streaming-HTTP transport driver: a persistent SSE
// session to an upstream MCP server reachable over the network, optionally
// authenticated with a bearer token or an API-key header.
type httpConn struct {
	server string
	inner  sdk_client.MCPClient
}

// dialHTTP opens an SSE session to p.URL and completes the initialize
// handshake, bounded by p.TimeoutSeconds. Auth headers (when p.Auth is set)
// are attached to every request the SSE client makes, not just the initial
// connect, since mcp-go's SSE client reuses the same header set for its
// follow-up POSTs.
func dialHTTP(ctx context.Context, p *ServerParams) (conn, error) {
	opts, err := authOptions(p)
	if err != nil {
		return nil, err
	}

	cli, err := sdk_client.NewSSEMCPClient(p.URL, opts...)
	if err != nil {
		return nil, errInvalidConfig(p.Name, fmt.Sprintf("build SSE client for %q", p.URL), err)
	}

	hctx, cancel := withTimeout(ctx, p.TimeoutSeconds)
	defer cancel()

	if err := cli.Start(hctx); err != nil {
		_ = cli.Close()
		if hctx.Err() != nil {
			return nil, errConnectionTimeout(p.Name, "connect timed out", err)
		}
		return nil, errConnection(p.Name, fmt.Sprintf("connect to %q", p.URL), err)
	}

	_, err = cli.Initialize(hctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdk_mcp.Implementation{
				Name:    "mcpgw",
				Version: gatewayVersion,
			},
		},
	})
	if err != nil {
		_ = cli.Close()
		if hctx.Err() != nil {
			return nil, errConnectionTimeout(p.Name, "initialize handshake timed out", err)
		}
		return nil, errConnection(p.Name, "initialize handshake failed", err)
	}

	return &httpConn{server: p.Name, inner: cli}, nil
}

// authOptions translates a catalog Auth block into the SSE client's header
// options. Only bearer and apiKey schemes are supported, per spec.md §3.
func authOptions(p *ServerParams) ([]sdk_transport.ClientOption, error) {
	if p.Auth == nil {
		return nil, nil
	}
	headers := map[string]string{}
	switch p.Auth.Scheme {
	case AuthBearer:
		headers["Authorization"] = "Bearer " + p.Auth.Token
	case AuthAPIKey:
		name := p.Auth.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		headers[name] = p.Auth.Token
	default:
		return nil, errInvalidConfig(p.Name, fmt.Sprintf("unsupported auth scheme %q", p.Auth.Scheme), nil)
	}
	return []sdk_transport.ClientOption{sdk_transport.WithHeaders(headers)}, nil
}

func (c *httpConn) listTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := c.inner.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
		if isDisconnect(err) {
			return nil, errToolExecutionDisconnect(c.server, "connection dropped while listing tools", err)
		}
		return nil, errToolExecution(c.server, "list tools", err)
	}

	tools := make([]ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			ServerName:  c.server,
		})
	}
	return tools, nil
}

func (c *httpConn) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.inner.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errCancelled(c.server)
		}
		if isDisconnect(err) {
			return "", errToolExecutionDisconnect(c.server, fmt.Sprintf("connection dropped mid-call to %q", name), err)
		}
		return "", errToolExecution(c.server, fmt.Sprintf("call tool %q", name), err)
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(sdk_mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", errToolExecution(c.server, fmt.Sprintf("tool %q reported an error", name), fmt.Errorf("%s", text))
	}
	return text, nil
}

func (c *httpConn) close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// isDisconnect is a best-effort classifier for the subset of SSE client
// errors that mean "the stream went away" rather than "the tool call
// itself failed" — used to decide whether a ServerSession should fall back
// to Failed (§4.4) instead of just surfacing a per-call error.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"eof", "connection reset", "broken pipe", "context deadline exceeded", "closed network connection"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
