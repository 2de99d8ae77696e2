package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mcprelay/gateway/internal/llm"
	"github.com/mcprelay/gateway/internal/tool"
)

// scriptedProvider replays a fixed sequence of CallLLMWithTools responses,
// in the teacher's own hand-rolled-fake test style.
type scriptedProvider struct {
	replies []llm.Message
	calls   int
	lastMsg []llm.Message
}

func (p *scriptedProvider) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	return llm.Message{}, errors.New("not used in these tests")
}

func (p *scriptedProvider) CallLLMStream(ctx context.Context, messages []llm.Message, onChunk llm.StreamCallback) (llm.Message, error) {
	return llm.Message{}, errors.New("not used in these tests")
}

func (p *scriptedProvider) CallLLMWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Message, error) {
	p.lastMsg = messages
	if p.calls >= len(p.replies) {
		return llm.Message{}, errors.New("scriptedProvider: ran out of scripted replies")
	}
	reply := p.replies[p.calls]
	p.calls++
	return reply, nil
}

func (p *scriptedProvider) GetName() string { return "scripted" }

// fakeTool is a minimal tool.Tool double.
type fakeTool struct {
	name   string
	output string
	err    error
}

func (f *fakeTool) Name() string                    { return f.name }
func (f *fakeTool) Description() string             { return "fake tool for tests" }
func (f *fakeTool) InputSchema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (f *fakeTool) Init(ctx context.Context) error   { return nil }
func (f *fakeTool) Close() error                     { return nil }
func (f *fakeTool) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	if f.err != nil {
		return tool.ToolResult{}, f.err
	}
	return tool.ToolResult{Output: f.output}, nil
}

func TestAgent_Run_RejectsEmptyMessage(t *testing.T) {
	a := New(&scriptedProvider{}, tool.NewRegistry())
	_, _, err := a.Run(context.Background(), "   ", "", "", nil)
	if err == nil {
		t.Fatal("expected an error for an empty message")
	}
}

func TestAgent_Run_DirectAnswerWithNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "hello there"}}}
	a := New(provider, tool.NewRegistry())

	text, trace, err := a.Run(context.Background(), "hi", "", "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q", text)
	}
	if len(trace) != 0 {
		t.Errorf("trace = %v, want empty (no tool calls made)", trace)
	}
}

func TestAgent_Run_DispatchesToolCallToBuiltin(t *testing.T) {
	registry := tool.NewRegistry()
	registry.Register(&fakeTool{name: "lookup", output: "42"})

	provider := &scriptedProvider{replies: []llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: "lookup", Arguments: json.RawMessage(`{"q":"answer"}`)},
			},
		},
		{Role: llm.RoleAssistant, Content: "the answer is 42"},
	}}
	a := New(provider, registry)

	text, trace, err := a.Run(context.Background(), "what is the answer?", "", "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "the answer is 42" {
		t.Errorf("text = %q", text)
	}
	if len(trace) != 1 {
		t.Fatalf("trace = %v, want one entry", trace)
	}

	// The second round's messages must include the tool result so the model
	// actually sees what lookup returned.
	foundToolMsg := false
	for _, m := range provider.lastMsg {
		if m.Role == llm.RoleTool && m.Content == "42" {
			foundToolMsg = true
		}
	}
	if !foundToolMsg {
		t.Error("expected a role=tool message carrying the tool's output to reach the second CallLLMWithTools")
	}
}

func TestAgent_Run_UnknownToolNameBecomesErrorTraceEntry(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: "does-not-exist", Arguments: json.RawMessage(`{}`)},
			},
		},
		{Role: llm.RoleAssistant, Content: "done"},
	}}
	a := New(provider, tool.NewRegistry())

	_, trace, err := a.Run(context.Background(), "go", "", "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("trace = %v, want one entry", trace)
	}
	if !strings.Contains(trace[0], "error:") {
		t.Errorf("trace[0] = %q, want it to report the dispatch error inline rather than aborting the turn", trace[0])
	}
}

func TestAgent_Run_ExceedsMaxRoundsReturnsError(t *testing.T) {
	replies := make([]llm.Message, 0, maxToolCallRounds)
	for i := 0; i < maxToolCallRounds; i++ {
		replies = append(replies, llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "x", Name: "never-settles", Arguments: json.RawMessage(`{}`)}},
		})
	}
	provider := &scriptedProvider{replies: replies}
	a := New(provider, tool.NewRegistry())

	_, _, err := a.Run(context.Background(), "loop forever", "", "", nil)
	if err == nil {
		t.Fatal("expected an error once maxToolCallRounds is exceeded")
	}
}
