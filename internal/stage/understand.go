package stage

import (
	"context"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/util/jsonutil"
)

const promptUnderstand = `You are analyzing a mathematical problem before any solving begins.

Input JSON provides:
- problem: the raw problem statement
- attempt: which revision of the analysis this is (1 = first)
- suggestions: revision instructions from a verifier, when present

Task:
Return STRICT JSON:
{
  "normalized_problem": "string",   // the problem restated precisely, LaTeX where helpful
  "givens":             ["string"], // known facts extracted from the statement
  "objectives":         ["string"], // what must be found or proven
  "constraints":        ["string"], // explicit conditions limiting the solution
  "primary_field":      "string",   // governing mathematical field
  "strategy":           "string",   // deduction from principles to a solution strategy
  "key_breakthroughs":  ["string"], // pivotal transformations or insights
  "potential_risks":    ["string"], // traps and points that will need verification
  "problem_type": "algebra|geometry|calculus|probability|statistics|differential_equations|linear_algebra|other"
}

Rules:
- Extract only what the statement supports; do not invent givens.
- When suggestions are present, address each one in the revised analysis.
- JSON only; no comments or trailing commas.
`

// Understand produces the comprehension analysis for a problem.
type Understand struct {
	LLM llm.Client
}

func (u *Understand) Kind() solve.StageKind { return solve.StageUnderstand }

func (u *Understand) Invoke(ctx context.Context, view solve.ContextView) (solve.StageOutput, error) {
	input := map[string]any{
		"problem": view.Problem,
		"attempt": view.Attempt,
	}
	if len(view.Suggestions) > 0 {
		input["suggestions"] = view.Suggestions
	}
	raw, err := u.LLM.GenerateJSON(llm.WithPhase(ctx, "understand"), promptUnderstand, input)
	if err != nil {
		return nil, classify(solve.StageUnderstand, err)
	}
	var out solve.Comprehension
	if err := jsonutil.UnmarshalRaw(raw, &out); err != nil {
		return nil, &solve.StageError{Stage: solve.StageUnderstand, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if out.NormalizedProblem == "" || len(out.Objectives) == 0 {
		return nil, &solve.StageError{Stage: solve.StageUnderstand, Err: fmt.Errorf("analysis missing normalized problem or objectives")}
	}
	if out.ProblemType == "" {
		out.ProblemType = solve.ProblemOther
	}
	return &out, nil
}
