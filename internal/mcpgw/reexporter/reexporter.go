// Package reexporter implements C6: an MCP server, backed by a
// *mcpgw.Manager, that lets other gateways treat this one as a peer. It
// holds only a name-keyed weak reference to the Manager (spec.md §9
// "broken by name-keyed weak reference") and resolves toolkits fresh on
// every call rather than caching a strong reference to any session.
package reexporter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mcprelay/gateway/internal/mcpgw"
)

// AgentCollaborator is the external LLM-agent entry point the chat tool
// delegates to (spec.md §6: "agent.run(message, conversationId?, modelKey?,
// toolkits) → (finalText, trace)"). Defined here, not imported from
// internal/agent, so mcpgw/reexporter never depends on the agent package —
// the agent depends on mcpgw, never the reverse (avoids the cycle spec.md
// §9 calls out).
type AgentCollaborator interface {
	Run(ctx context.Context, message, conversationID, modelKey string, toolkits []*mcpgw.Toolkit) (finalText string, trace []string, err error)
}

// Server is the re-exported MCP server bound to a fixed mount path.
type Server struct {
	manager   *mcpgw.Manager
	agent     AgentCollaborator
	authToken string
	mcpServer *mcpserver.MCPServer
}

// New wires a fixed tool set (spec.md §4.6) backed by manager and agent.
// authToken must be non-empty — its absence is a fatal boot-time
// configuration error the caller (cmd/gateway) is expected to check for
// before calling New.
func New(manager *mcpgw.Manager, agent AgentCollaborator, authToken string) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		"mcpgw-reexporter",
		gatewayVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	s := &Server{manager: manager, agent: agent, authToken: authToken, mcpServer: mcpSrv}
	s.registerTools()
	return s
}

const gatewayVersion = "0.1.0"

func (s *Server) registerTools() {
	s.addTool("list_mcp_servers",
		"Snapshot of every catalog server: name, state, connected, function count.",
		`{"type":"object","properties":{}}`,
		s.handleListServers)

	s.addTool("get_mcp_server_functions",
		"Tool names exposed by a given server.",
		`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`,
		s.handleGetServerFunctions)

	s.addTool("reload_mcp_server",
		"Close and re-dial a single server's session.",
		`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`,
		s.handleReloadServer)

	s.addTool("reload_all_mcp_servers",
		"Reload every enabled server and return a summary.",
		`{"type":"object","properties":{}}`,
		s.handleReloadAll)

	s.addTool("get_available_mcp_servers",
		"Names of servers currently in the Ready state.",
		`{"type":"object","properties":{}}`,
		s.handleGetAvailableServers)

	s.addTool("chat",
		"Delegate a message to the external agent collaborator, which may recursively consume this gateway's toolkits.",
		`{"type":"object","properties":{"message":{"type":"string"},"model_key":{"type":"string"},"conversation_id":{"type":"string"}},"required":["message"]}`,
		s.handleChat)
}

func (s *Server) addTool(name, description, rawSchema string, handler mcpserver.ToolHandlerFunc) {
	tool := sdk_mcp.NewToolWithRawSchema(name, description, json.RawMessage(rawSchema))
	s.mcpServer.AddTool(tool, handler)
}

func textResult(s string) *sdk_mcp.CallToolResult {
	return &sdk_mcp.CallToolResult{Content: []sdk_mcp.Content{sdk_mcp.NewTextContent(s)}}
}

func errResult(format string, args ...any) *sdk_mcp.CallToolResult {
	return &sdk_mcp.CallToolResult{
		Content: []sdk_mcp.Content{sdk_mcp.NewTextContent(fmt.Sprintf(format, args...))},
		IsError: true,
	}
}

func (s *Server) handleListServers(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	statuses := s.manager.ListServers()
	payload, err := json.Marshal(statuses)
	if err != nil {
		return errResult("marshal server list: %v", err), nil
	}
	return textResult(string(payload)), nil
}

func (s *Server) handleGetServerFunctions(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["name"].(string)
	if name == "" {
		return errResult("missing required argument %q", "name"), nil
	}
	for _, st := range s.manager.ListServers() {
		if st.Name == name {
			payload, err := json.Marshal(st.Functions)
			if err != nil {
				return errResult("marshal functions: %v", err), nil
			}
			return textResult(string(payload)), nil
		}
	}
	return errResult("no such server %q", name), nil
}

func (s *Server) handleReloadServer(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["name"].(string)
	if name == "" {
		return errResult("missing required argument %q", "name"), nil
	}
	if err := s.manager.Reload(ctx, name); err != nil {
		return errResult("reload %q: %v", name, err), nil
	}
	return textResult(fmt.Sprintf("%q reloaded", name)), nil
}

func (s *Server) handleReloadAll(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	summary, err := s.manager.ReloadAll(ctx)
	if err != nil {
		return errResult("reload all: %v", err), nil
	}
	return textResult(summary.String()), nil
}

func (s *Server) handleGetAvailableServers(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	var ready []string
	for _, st := range s.manager.ListServers() {
		if st.Connected {
			ready = append(ready, st.Name)
		}
	}
	payload, err := json.Marshal(ready)
	if err != nil {
		return errResult("marshal available servers: %v", err), nil
	}
	return textResult(string(payload)), nil
}

func (s *Server) handleChat(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	args := req.GetArguments()
	message, _ := args["message"].(string)
	if message == "" {
		return errResult("missing required argument %q", "message"), nil
	}
	modelKey, _ := args["model_key"].(string)
	conversationID, _ := args["conversation_id"].(string)

	if s.agent == nil {
		return errResult("no agent collaborator configured"), nil
	}

	// Toolkits are resolved by name through the Manager on every call, one
	// full toolkit per Ready server; no session reference outlives the call,
	// keeping the only reference back to Manager state name-keyed (§9).
	var toolkits []*mcpgw.Toolkit
	for _, st := range s.manager.ListServers() {
		if !st.Connected {
			continue
		}
		if tk, tkErr := s.manager.GetToolkit(ctx, st.Name, nil); tkErr == nil {
			toolkits = append(toolkits, tk)
		}
	}
	finalText, _, err := s.agent.Run(ctx, message, conversationID, modelKey, toolkits)
	if err != nil {
		return errResult("chat: %v", err), nil
	}
	return textResult(finalText), nil
}

// Handler returns an http.Handler hosting the re-exporter's SSE endpoints
// at /sse and /message, both guarded by the configured bearer token
// (spec.md §8.7). baseURL is advertised to clients during their own
// connection negotiation.
func (s *Server) Handler(baseURL string) http.Handler {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", requireBearer(s.authToken, sseServer.SSEHandler()))
	mux.Handle("/message", requireBearer(s.authToken, sseServer.MessageHandler()))
	return mux
}

// ListenStdio hosts the re-exporter over stdio, for a gateway invoked as a
// direct child process of another MCP client rather than over the network.
func (s *Server) ListenStdio(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ListenAndServeSSE hosts the re-exporter over HTTP at the given port,
// blocking until ctx is cancelled, then shutting down gracefully.
func (s *Server) ListenAndServeSSE(ctx context.Context, port int, baseURL string) error {
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: s.Handler(baseURL),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
