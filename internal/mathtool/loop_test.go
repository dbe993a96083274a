package mathtool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeLLM struct {
	responses []json.RawMessage
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }
func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if len(f.responses) == 0 {
		return nil, errors.New("fakeLLM: no responses left")
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

type countingTool struct {
	calls   int
	queries []string
}

func (c *countingTool) Name() string        { return "calc" }
func (c *countingTool) Description() string { return "counting test tool" }
func (c *countingTool) Compute(_ context.Context, query string) (string, error) {
	c.calls++
	c.queries = append(c.queries, query)
	return "ok", nil
}

func basePrompt(_ context.Context, _ *LoopState, _ []Spec) (string, error) {
	return "base", nil
}

func TestLoop_ToolThenFinal(t *testing.T) {
	client := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"calc","tool_query":"6*7"}`),
		json.RawMessage(`{"action":"final","final":{"result":"done"}}`),
	}}
	tool := &countingTool{}
	reg := NewRegistry()
	reg.Register(tool)

	loop := &Loop{LLM: client, Tools: reg, MaxIters: 3}
	out, state, err := loop.Run(context.Background(), map[string]any{"x": 1}, basePrompt)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if string(out) != `{"result":"done"}` {
		t.Fatalf("unexpected final: %s", out)
	}
	if tool.calls != 1 || tool.queries[0] != "6*7" {
		t.Fatalf("tool calls = %d %v, want one call with 6*7", tool.calls, tool.queries)
	}
	if len(state.ToolResults) != 1 || state.ToolResults[0].Output != "ok" {
		t.Fatalf("state = %+v, want one recorded tool result", state)
	}
}

func TestLoop_BareFinalWithoutEnvelope(t *testing.T) {
	client := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"candidate_answer":"42"}`),
	}}
	loop := &Loop{LLM: client, Tools: NewRegistry(), MaxIters: 3}
	out, _, err := loop.Run(context.Background(), nil, basePrompt)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if string(out) != `{"candidate_answer":"42"}` {
		t.Fatalf("unexpected final: %s", out)
	}
}

func TestLoop_UnknownToolRecordedAsError(t *testing.T) {
	client := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"nope","tool_query":"q"}`),
		json.RawMessage(`{"action":"final","final":{"result":"done"}}`),
	}}
	loop := &Loop{LLM: client, Tools: NewRegistry(), MaxIters: 3}
	_, state, err := loop.Run(context.Background(), nil, basePrompt)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(state.ToolResults) != 1 || state.ToolResults[0].Error == "" {
		t.Fatalf("state = %+v, want recorded tool error", state)
	}
}

func TestLoop_MaxIterations(t *testing.T) {
	client := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"calc","tool_query":"1"}`),
		json.RawMessage(`{"action":"tool","tool_name":"calc","tool_query":"2"}`),
	}}
	reg := NewRegistry()
	reg.Register(&countingTool{})

	loop := &Loop{LLM: client, Tools: reg, MaxIters: 2}
	_, state, err := loop.Run(context.Background(), nil, basePrompt)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("error = %v, want ErrMaxIterations", err)
	}
	if state.Iterations != 2 {
		t.Fatalf("iterations = %d, want 2", state.Iterations)
	}
}

func TestParseAction_UnknownAction(t *testing.T) {
	if _, err := parseAction(json.RawMessage(`{"action":"dance"}`)); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("error = %v, want ErrUnknownAction", err)
	}
}
