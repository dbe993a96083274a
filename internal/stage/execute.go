package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/mathtool"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/util/jsonutil"
)

const promptExecute = `You are executing a mathematical plan task by task.

Input JSON provides:
- problem: the raw problem statement
- comprehension: the analysis of the problem
- plan: the ordered task list to carry out
- attempt: which revision of the execution this is (1 = first)
- suggestions: revision instructions from a verifier, when present

You may call external tools. Respond with exactly ONE of:

Tool call:
{"action": "tool", "tool_name": "string", "tool_query": "string"}

Final result:
{"action": "final", "final": {
  "workspace": {"output_id": "value"},   // named results keyed by the plan's output ids
  "steps": ["string"],                   // the worked derivation, step by step
  "candidate_answer": "string"           // the answer in the plan's expected form
}}

Rules:
- Follow the plan's task order; use a tool when a task's method names one.
- Record every intermediate result in the workspace under its output_id.
- Do not return "final" until the candidate answer is fully derived.
- JSON only; no comments or trailing commas.
`

// Execute carries out the plan, dispatching tool calls through a bounded
// tool loop and assembling the computational trace.
type Execute struct {
	LLM          llm.Client
	Tools        *mathtool.Registry
	MaxToolIters int
}

func (e *Execute) Kind() solve.StageKind { return solve.StageExecute }

func (e *Execute) Invoke(ctx context.Context, view solve.ContextView) (solve.StageOutput, error) {
	if view.Plan == nil {
		return nil, &solve.StageError{Stage: solve.StageExecute, Err: fmt.Errorf("no plan available")}
	}
	input := map[string]any{
		"problem":       view.Problem,
		"comprehension": view.Comprehension,
		"plan":          view.Plan,
		"attempt":       view.Attempt,
	}
	if len(view.Suggestions) > 0 {
		input["suggestions"] = view.Suggestions
	}

	loop := &mathtool.Loop{LLM: e.LLM, Tools: e.Tools, MaxIters: e.MaxToolIters}
	ctx = llm.WithPhase(ctx, "execute")
	final, state, err := loop.Run(ctx, input, buildExecutePrompt)
	if err != nil {
		if errors.Is(err, mathtool.ErrMaxIterations) || errors.Is(err, mathtool.ErrUnknownAction) {
			return nil, &solve.StageError{Stage: solve.StageExecute, Err: err}
		}
		return nil, classify(solve.StageExecute, err)
	}

	var out solve.Execution
	if err := jsonutil.UnmarshalRaw(final, &out); err != nil {
		return nil, &solve.StageError{Stage: solve.StageExecute, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if strings.TrimSpace(out.CandidateAnswer) == "" {
		return nil, &solve.StageError{Stage: solve.StageExecute, Err: fmt.Errorf("execution produced no candidate answer")}
	}
	out.Trace = traceFromState(state)
	return &out, nil
}

// buildExecutePrompt appends the available tools and accumulated tool
// results to the base prompt so each loop iteration sees prior outputs.
func buildExecutePrompt(_ context.Context, state *mathtool.LoopState, tools []mathtool.Spec) (string, error) {
	var b strings.Builder
	b.WriteString(promptExecute)
	if len(tools) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}
	if len(state.ToolResults) > 0 {
		b.WriteString("\nTool results so far:\n")
		raw, err := jsonutil.MarshalNoEscape(state.ToolResults)
		if err != nil {
			return "", err
		}
		b.Write(raw)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func traceFromState(state *mathtool.LoopState) []solve.ToolExecution {
	if state == nil || len(state.ToolResults) == 0 {
		return nil
	}
	trace := make([]solve.ToolExecution, 0, len(state.ToolResults))
	for _, tr := range state.ToolResults {
		trace = append(trace, solve.ToolExecution{
			Tool:   tr.Name,
			Query:  tr.Query,
			Output: tr.Output,
			Error:  tr.Error,
		})
	}
	return trace
}
