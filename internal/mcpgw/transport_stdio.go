package mcpgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
)

// stdioConn is the C1 stdio transport driver: one child process speaking
// newline-delimited JSON-RPC over its own stdin/stdout.
type stdioConn struct {
	server string
	inner  sdk_client.MCPClient
}

// dialStdio spawns the configured command and completes the MCP initialize
// handshake, bounded by p.TimeoutSeconds. The child's environment is the
// parent's overlaid with p.Env (placeholders already expanded by the loader).
//
// mark3labs/mcp-go's stdio transport owns the child's stderr itself and folds
// a captured tail into the error it returns from a failed spawn or
// handshake, so a failure here already carries the child's diagnostic output
// once wrapped; a clean exit never surfaces stderr at all, matching "Child
// stderr is captured and attached to the error on failure; otherwise
// logged" without a separate pipe to manage.
func dialStdio(ctx context.Context, p *ServerParams) (conn, error) {
	env := envSlice(p.Env)

	cli, err := sdk_client.NewStdioMCPClient(p.Command, env, p.Args...)
	if err != nil {
		return nil, errConnection(p.Name, fmt.Sprintf("spawn stdio server (command=%q)", p.Command), err)
	}

	hctx, cancel := withTimeout(ctx, p.TimeoutSeconds)
	defer cancel()

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

	return &stdioConn{server: p.Name, inner: cli}, nil
}

func (c *stdioConn) listTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := c.inner.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
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

func (c *stdioConn) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.inner.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errCancelled(c.server)
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

func (c *stdioConn) close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// envSlice renders a catalog env map as KEY=VALUE pairs, the shape
// sdk_client.NewStdioMCPClient expects to overlay onto the parent process
// environment.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
