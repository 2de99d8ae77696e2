package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mcprelay/gateway/internal/mcpgw"
)

// AgentCollaborator is the conversation-handling side of §6's
// "agent.run(message, conversationId?, modelKey?, toolkits) → (finalText,
// trace)" contract, consumed here rather than imported from internal/agent
// directly to keep this package's dependency graph pointed only at mcpgw.
type AgentCollaborator interface {
	Run(ctx context.Context, message, conversationID, modelKey string, toolkits []*mcpgw.Toolkit) (finalText string, trace []string, err error)
}

// Handlers holds the dependencies every REST/SSE route needs. It is the
// "REST handlers query Manager.listServers(), addPeer(), removePeer(),
// reload()" and "conversation handler resolves ToolSelection via
// Manager.getToolkit" surfaces spec.md §6 calls out.
type Handlers struct {
	manager *mcpgw.Manager
	peers   *mcpgw.PeerRegistry
	agent   AgentCollaborator
}

// NewHandlers wires a Handlers against a live Manager/PeerRegistry/agent.
func NewHandlers(manager *mcpgw.Manager, peers *mcpgw.PeerRegistry, agent AgentCollaborator) *Handlers {
	return &Handlers{manager: manager, peers: peers, agent: agent}
}

func encodeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[web] encode response: %v", err)
	}
}

// HandleListServers answers GET /api/mcp/servers.
func (h *Handlers) HandleListServers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	encodeJSON(w, h.manager.ListServers())
}

type addPeerRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	AuthToken string `json:"auth_token,omitempty"`
}

// HandleAddPeer answers POST /api/mcp/peers.
func (h *Handlers) HandleAddPeer(w http.ResponseWriter, r *http.Request) {
	var req addPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcpgw.NewInvalidConfigError("", "decode request body", err))
		return
	}

	status, err := h.peers.AddPeer(r.Context(), req.Name, req.URL, req.AuthToken)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	encodeJSON(w, status)
}

// HandleRemovePeer answers DELETE /api/mcp/peers/{name}.
func (h *Handlers) HandleRemovePeer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.peers.RemovePeer(name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReload answers POST /api/mcp/servers/{name}/reload.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.manager.Reload(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReloadAll answers POST /api/mcp/reload.
func (h *Handlers) HandleReloadAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.manager.ReloadAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	encodeJSON(w, summary)
}

// toolSelection mirrors spec.md §3's request-scoped ToolSelection.
type toolSelection struct {
	ServerName string   `json:"server_name"`
	Functions  []string `json:"functions,omitempty"`
}

type chatRequest struct {
	Message        string          `json:"message"`
	ConversationID string          `json:"conversation_id,omitempty"`
	ModelKey       string          `json:"model_key,omitempty"`
	Tools          []toolSelection `json:"tools,omitempty"`
}

// HandleChat answers POST /api/chat, streaming the agent's trace over SSE
// and ending with a done (or error) event.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcpgw.NewInvalidConfigError("", "decode request body", err))
		return
	}

	sse := newSSEWriter(w, r)
	if sse == nil {
		return
	}

	toolkits := make([]*mcpgw.Toolkit, 0, len(req.Tools))
	for _, sel := range req.Tools {
		tk, err := h.manager.GetToolkit(r.Context(), sel.ServerName, sel.Functions)
		if err != nil {
			sse.Send("error", sseErrorEvent{Message: err.Error()})
			return
		}
		toolkits = append(toolkits, tk)
	}

	finalText, trace, err := h.agent.Run(r.Context(), req.Message, req.ConversationID, req.ModelKey, toolkits)
	for _, step := range trace {
		sse.Send("trace", sseTraceEvent{Step: step})
	}
	if err != nil {
		sse.Send("error", sseErrorEvent{Message: err.Error()})
		return
	}
	sse.Send("done", sseDoneEvent{FinalText: finalText})
}
