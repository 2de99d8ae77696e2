package mcpgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcprelay/gateway/internal/llm"
)

// Toolkit is the capability interface an LLM agent is actually handed (§9
// "explicit capability interface"): a filtered, name-stable view of one
// session's tool catalog. It never outlives the allow-list it was built
// with, and mutating it never reaches back into the session (invariant 3).
type Toolkit struct {
	ServerName   string
	allowedNames map[string]struct{} // nil means "all"
	tools        []ToolDescriptor
	session      *ServerSession
}

// newToolkit builds a Toolkit for serverName from the session's live
// catalog, intersected with allowed (nil/empty allowed means "entire
// server"). Trims whitespace on both sides of the match, case-sensitive,
// per spec.md §4.2.
func newToolkit(ctx context.Context, session *ServerSession, serverName string, allowed []string) (*Toolkit, error) {
	live, err := session.listTools(ctx)
	if err != nil {
		return nil, err
	}

	tk := &Toolkit{ServerName: serverName, session: session}
	if len(allowed) > 0 {
		set := make(map[string]struct{}, len(allowed))
		for _, n := range allowed {
			set[strings.TrimSpace(n)] = struct{}{}
		}
		tk.allowedNames = set
	}

	tk.tools = make([]ToolDescriptor, 0, len(live))
	for _, t := range live {
		if tk.allowedNames != nil {
			if _, ok := tk.allowedNames[t.Name]; !ok {
				continue
			}
		}
		// copied by value at bind time: the adapter's own fields survive any
		// later re-enumeration of the underlying session (spec.md §4.2).
		tk.tools = append(tk.tools, t)
	}
	return tk, nil
}

// Tools returns the filtered, ordered tool list. Callers must not mutate
// the returned slice's backing array across calls; a defensive copy is
// returned instead.
func (t *Toolkit) Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, len(t.tools))
	copy(out, t.tools)
	return out
}

// AsToolDefinitions renders the toolkit in the shape the external LLM-agent
// collaborator's Function Calling interface expects (§6 "agent.run(...,
// toolkits)"), prefixing each name with the server so an agent juggling
// several toolkits never collides on a bare tool name.
func (t *Toolkit) AsToolDefinitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(t.tools))
	for i, td := range t.tools {
		out[i] = llm.ToolDefinition{
			Name:        QualifiedName(t.ServerName, td.Name),
			Description: td.Description,
			Parameters:  td.InputSchema,
		}
	}
	return out
}

// QualifiedName is the server__tool name an agent sees for a toolkit entry;
// InvokeQualified strips the prefix back off before delegating to Invoke.
func QualifiedName(server, tool string) string {
	return server + "__" + tool
}

// InvokeQualified is Invoke, but accepts the server-prefixed name an agent
// actually holds (see QualifiedName / AsToolDefinitions).
func (t *Toolkit) InvokeQualified(ctx context.Context, qualifiedTool string, args map[string]any) (string, error) {
	prefix := t.ServerName + "__"
	if !strings.HasPrefix(qualifiedTool, prefix) {
		return "", errNotFound(qualifiedTool)
	}
	return t.Invoke(ctx, strings.TrimPrefix(qualifiedTool, prefix), args)
}

// Invoke validates args against the tool's declared inputSchema (shallow:
// required fields present, primitive types match) and, on success, routes
// the call through the owning session. Schema failures never touch
// transport (spec.md §4.2).
func (t *Toolkit) Invoke(ctx context.Context, toolName string, args map[string]any) (string, error) {
	var desc *ToolDescriptor
	for i := range t.tools {
		if t.tools[i].Name == toolName {
			desc = &t.tools[i]
			break
		}
	}
	if desc == nil {
		return "", errNotFound(fmt.Sprintf("%s/%s", t.ServerName, toolName))
	}

	if err := validateArgs(t.ServerName, desc.InputSchema, args); err != nil {
		return "", err
	}

	return t.session.callTool(ctx, toolName, args)
}

// jsonSchema is the minimal subset of JSON Schema this package understands:
// enough to check required-field presence and primitive type agreement.
type jsonSchema struct {
	Type       string                 `json:"type"`
	Required   []string               `json:"required"`
	Properties map[string]jsonSchema  `json:"properties"`
}

// validateArgs performs the "shallow" validation spec.md §4.2 calls for:
// required fields present, types match primitives. It does not recurse into
// nested object/array schemas beyond the top level's declared properties.
func validateArgs(server string, schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	var s jsonSchema
	if err := json.Unmarshal(schema, &s); err != nil {
		// A schema we cannot parse is not this package's problem to police
		// further; let the upstream server reject malformed calls itself.
		return nil
	}

	for _, req := range s.Required {
		if _, ok := args[req]; !ok {
			return errInvalidArgs(server, fmt.Sprintf("missing required argument %q", req), nil)
		}
	}

	for name, prop := range s.Properties {
		val, ok := args[name]
		if !ok || prop.Type == "" {
			continue
		}
		if !typeMatches(prop.Type, val) {
			return errInvalidArgs(server, fmt.Sprintf("argument %q: expected %s, got %T", name, prop.Type, val), nil)
		}
	}
	return nil
}

func typeMatches(schemaType string, v any) bool {
	switch schemaType {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case float64:
			return n == float64(int64(n))
		case int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
