package stage

import (
	"context"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/util/jsonutil"
)

const promptPlan = `You are turning a mathematical analysis into an executable plan.

Input JSON provides:
- problem: the raw problem statement
- comprehension: the analysis of the problem (givens, objectives, strategy)
- attempt: which revision of the plan this is (1 = first)
- suggestions: revision instructions from a verifier, when present

Task:
Return STRICT JSON:
{
  "approach": "string",            // one-paragraph summary of the plan
  "tasks": [{
    "task_id":     "string",       // unique, e.g. "t1"
    "description": "string",
    "method":      "string",       // "wolfram_alpha" or "internal_reasoning"
    "query":       "string",       // concrete query when method is a tool
    "depends_on":  ["string"],     // task_ids this task needs
    "output_id":   "string"        // name for the task's result
  }],
  "expected_form": "string"        // shape of the final answer (number, set, proof, ...)
}

Rules:
- Tasks must be ordered so dependencies come first.
- Keep the plan minimal; prefer few decisive tasks over many small ones.
- When suggestions are present, the revised plan must address them.
- JSON only; no comments or trailing commas.
`

// Plan produces the execution plan from the comprehension analysis.
type Plan struct {
	LLM llm.Client
}

func (p *Plan) Kind() solve.StageKind { return solve.StagePlan }

func (p *Plan) Invoke(ctx context.Context, view solve.ContextView) (solve.StageOutput, error) {
	if view.Comprehension == nil {
		return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("no comprehension analysis available")}
	}
	input := map[string]any{
		"problem":       view.Problem,
		"comprehension": view.Comprehension,
		"attempt":       view.Attempt,
	}
	if len(view.Suggestions) > 0 {
		input["suggestions"] = view.Suggestions
	}
	raw, err := p.LLM.GenerateJSON(llm.WithPhase(ctx, "plan"), promptPlan, input)
	if err != nil {
		return nil, classify(solve.StagePlan, err)
	}
	var out solve.Plan
	if err := jsonutil.UnmarshalRaw(raw, &out); err != nil {
		return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if len(out.Tasks) == 0 {
		return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("plan has no tasks")}
	}
	seen := make(map[string]bool, len(out.Tasks))
	for i, task := range out.Tasks {
		if task.TaskID == "" {
			return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("task %d has no task_id", i)}
		}
		if seen[task.TaskID] {
			return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("duplicate task_id %q", task.TaskID)}
		}
		seen[task.TaskID] = true
		for _, dep := range task.DependsOn {
			if !seen[dep] {
				return nil, &solve.StageError{Stage: solve.StagePlan, Err: fmt.Errorf("task %q depends on %q before it is defined", task.TaskID, dep)}
			}
		}
	}
	return &out, nil
}
