package mathtool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
)

var (
	ErrMaxIterations = errors.New("mathtool: max tool iterations reached")
	ErrUnknownAction = errors.New("mathtool: unknown action")
)

// PromptBuilder builds the LLM prompt given tool specs and current state.
type PromptBuilder func(ctx context.Context, state *LoopState, tools []Spec) (string, error)

// Loop runs tool-call iterations until the LLM returns a final response.
// The iteration bound is the loop's own safety valve, independent of the
// orchestrator's run budget.
type Loop struct {
	LLM      llm.Client
	Tools    *Registry
	MaxIters int
}

// LoopState captures tool results across iterations.
type LoopState struct {
	Input       any          `json:"input"`
	Iterations  int          `json:"iterations"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolResult captures the output of one tool call.
type ToolResult struct {
	Name   string `json:"name"`
	Query  string `json:"query,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// actionEnvelope is the tool-loop action response from the LLM.
type actionEnvelope struct {
	Action    string          `json:"action,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolQuery string          `json:"tool_query,omitempty"`
	Final     json.RawMessage `json:"final,omitempty"`
}

func parseAction(raw json.RawMessage) (actionEnvelope, error) {
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return actionEnvelope{}, err
	}
	// If no envelope fields are present, treat the whole payload as the
	// final output; direct-output models skip the envelope.
	if env.Action == "" && env.ToolName == "" && len(env.Final) == 0 {
		env.Action = "final"
		env.Final = raw
	}
	if env.Action == "" {
		switch {
		case len(env.Final) > 0:
			env.Action = "final"
		case env.ToolName != "":
			env.Action = "tool"
		}
	}
	switch env.Action {
	case "final", "tool":
		return env, nil
	default:
		return actionEnvelope{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

// Run executes the tool loop and returns the final JSON result together
// with the accumulated state.
func (l *Loop) Run(ctx context.Context, input any, build PromptBuilder) (json.RawMessage, *LoopState, error) {
	if l == nil || l.LLM == nil || l.Tools == nil {
		return nil, nil, fmt.Errorf("mathtool: missing LLM or tools")
	}
	if build == nil {
		return nil, nil, fmt.Errorf("mathtool: prompt builder is nil")
	}
	max := l.MaxIters
	if max <= 0 {
		max = 5
	}

	state := &LoopState{Input: input}
	tools := l.Tools.Specs()
	for i := 0; i < max; i++ {
		state.Iterations = i + 1
		prompt, err := build(ctx, state, tools)
		if err != nil {
			return nil, state, err
		}
		raw, err := l.LLM.GenerateJSON(ctx, prompt, input)
		if err != nil {
			return nil, state, err
		}
		action, err := parseAction(raw)
		if err != nil {
			return nil, state, err
		}
		switch action.Action {
		case "final":
			return action.Final, state, nil
		case "tool":
			if action.ToolName == "" {
				return nil, state, fmt.Errorf("mathtool: tool_name required")
			}
			out, err := l.Tools.Compute(ctx, action.ToolName, action.ToolQuery)
			tr := ToolResult{
				Name:   action.ToolName,
				Query:  action.ToolQuery,
				Output: out,
			}
			if err != nil {
				tr.Error = err.Error()
			}
			state.ToolResults = append(state.ToolResults, tr)
		}
	}
	return nil, state, ErrMaxIterations
}
