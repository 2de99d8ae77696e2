// Package agent implements the external LLM-agent collaborator spec.md §6
// describes but puts out of the MCP core's scope: a single entry point,
// agent.run(message, conversationId?, modelKey?, toolkits) → (finalText,
// trace), built on Function Calling rather than the reference's full ReAct
// graph engine (internal/core/thinking/walkthrough in the reference — all
// out of scope per spec.md §1's "OUT of scope ... external collaborators").
//
// The agent never owns a mcpgw.Toolkit's underlying session; it only holds
// the Toolkit values a caller hands it for the duration of one Run call,
// matching the weak-reference discipline spec.md §5 requires everywhere
// else in the system.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mcprelay/gateway/internal/llm"
	"github.com/mcprelay/gateway/internal/mcpgw"
	"github.com/mcprelay/gateway/internal/tool"
	"github.com/mcprelay/gateway/internal/util"
)

// maxToolCallRounds bounds the tool-calling loop so a model that never
// settles on a final answer cannot spin forever.
const maxToolCallRounds = 8

// maxTraceSnippet is how much of a tool result is kept in the returned
// trace; full results still reach the model, only the trace is trimmed.
const maxTraceSnippet = 500

const systemPrompt = "You are the conversational agent behind an MCP gateway. " +
	"You may call any of the provided tools, including ones namespaced to " +
	"upstream MCP servers, to answer the user's request."

// Agent is the external LLM-agent collaborator. A Manager never holds a
// reference to one; wiring flows the other way, from cmd/gateway.
type Agent struct {
	provider llm.LLMProvider
	builtin  *tool.Registry
}

// New builds an Agent that always has access to the builtin tool registry
// in addition to whichever mcpgw.Toolkits a given Run call supplies.
func New(provider llm.LLMProvider, builtin *tool.Registry) *Agent {
	return &Agent{provider: provider, builtin: builtin}
}

// Run implements reexporter.AgentCollaborator and the §6 agent.run
// contract. modelKey is currently advisory only (the provider is fixed at
// construction); it is accepted so the interface matches spec.md's shape
// for a future multi-model provider.
func (a *Agent) Run(ctx context.Context, message, conversationID, modelKey string, toolkits []*mcpgw.Toolkit) (string, []string, error) {
	if strings.TrimSpace(message) == "" {
		return "", nil, fmt.Errorf("agent: empty message")
	}

	defs, dispatch := a.buildToolSet(toolkits)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: message},
	}

	var trace []string
	for round := 0; round < maxToolCallRounds; round++ {
		reply, err := a.provider.CallLLMWithTools(ctx, messages, defs)
		if err != nil {
			return "", trace, fmt.Errorf("agent: llm call (round %d): %w", round, err)
		}

		if len(reply.ToolCalls) == 0 {
			return reply.Content, trace, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			result, err := invoke(ctx, dispatch, call.Name, call.Arguments)
			if err != nil {
				result = fmt.Sprintf("error: %v", err)
			}
			trace = append(trace, fmt.Sprintf("%s(%s) -> %s", call.Name, string(call.Arguments), util.TruncateRunes(result, maxTraceSnippet)))
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	log.Printf("[agent] conversation %q hit max tool-call rounds (%d) without a final answer", conversationID, maxToolCallRounds)
	return "", trace, fmt.Errorf("agent: exceeded %d tool-call rounds without a final answer", maxToolCallRounds)
}

// toolDispatcher routes a qualified tool name to whichever backend (a
// builtin tool.Tool or an mcpgw.Toolkit) declared it.
type toolDispatcher func(ctx context.Context, name string, args map[string]any) (string, error)

func (a *Agent) buildToolSet(toolkits []*mcpgw.Toolkit) ([]llm.ToolDefinition, toolDispatcher) {
	var defs []llm.ToolDefinition
	if a.builtin != nil {
		defs = append(defs, a.builtin.GenerateToolDefinitions()...)
	}
	for _, tk := range toolkits {
		defs = append(defs, tk.AsToolDefinitions()...)
	}

	dispatch := func(ctx context.Context, name string, args map[string]any) (string, error) {
		for _, tk := range toolkits {
			if strings.HasPrefix(name, tk.ServerName+"__") {
				return tk.InvokeQualified(ctx, name, args)
			}
		}
		if a.builtin != nil {
			if t, ok := a.builtin.Get(name); ok {
				raw, err := json.Marshal(args)
				if err != nil {
					return "", fmt.Errorf("marshal args for %q: %w", name, err)
				}
				res, err := t.Execute(ctx, raw)
				if err != nil {
					return "", err
				}
				if res.Error != "" {
					return "", fmt.Errorf("%s", res.Error)
				}
				return res.Output, nil
			}
		}
		return "", fmt.Errorf("no tool named %q is bound to this turn", name)
	}

	return defs, dispatch
}

func invoke(ctx context.Context, dispatch toolDispatcher, name string, rawArgs json.RawMessage) (string, error) {
	var args map[string]any
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", fmt.Errorf("decode arguments for %q: %w", name, err)
		}
	}
	return dispatch(ctx, name, args)
}
