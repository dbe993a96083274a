package stage

import (
	"context"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/util/jsonutil"
)

const promptVerify = `You are auditing a completed solution attempt for a mathematical problem.

Input JSON provides:
- problem: the raw problem statement
- comprehension: the analysis of the problem
- plan: the plan that was executed
- execution: the worked steps, workspace and candidate answer
- previous_report: your prior critique of an earlier attempt, when present
- attempt: which verification pass this is (1 = first)

Run four checks, in order:
1. consistency: does the execution follow the plan, and the plan the analysis?
2. logical_chain: is every derivation step sound?
3. constraints: are all stated constraints respected by the answer?
4. final_answer: is the candidate answer correct and in the expected form?

Return STRICT JSON:
{
  "status": "passed|needs_revision|fatal_error",
  "issues": [{
    "kind": "factual_error|logical_flaw|incompleteness|calculation_error|format_error|missing_step",
    "detail": "string",
    "location": "string"            // which step or task the issue is in
  }],
  "suggestions": ["string"],        // concrete, actionable revision instructions
  "fault_locus_hint": "understand|plan|execute",
  "checks": [{"check_type": "string", "status": "pass|fail", "detail": "string"}],
  "rationale": "string",
  "confidence": 0.0
}

Rules:
- "passed" only when every check passes; omit issues, suggestions and
  fault_locus_hint in that case.
- "needs_revision" requires at least one issue, at least one suggestion
  and a fault_locus_hint.
- "fatal_error" is reserved for problems that are unsolvable as stated
  (contradictory givens, ill-posed question).
- JSON only; no comments or trailing commas.
`

// Verify audits the full solution attempt and produces the diagnostic
// report the oracle routes on.
type Verify struct {
	LLM llm.Client
}

func (v *Verify) Kind() solve.StageKind { return solve.StageVerify }

func (v *Verify) Invoke(ctx context.Context, view solve.ContextView) (solve.StageOutput, error) {
	if view.Execution == nil {
		return nil, &solve.StageError{Stage: solve.StageVerify, Err: fmt.Errorf("no execution to verify")}
	}
	input := map[string]any{
		"problem":       view.Problem,
		"comprehension": view.Comprehension,
		"plan":          view.Plan,
		"execution":     view.Execution,
		"attempt":       view.Attempt,
	}
	if view.Report != nil {
		input["previous_report"] = view.Report
	}
	raw, err := v.LLM.GenerateJSON(llm.WithPhase(ctx, "verify"), promptVerify, input)
	if err != nil {
		return nil, classify(solve.StageVerify, err)
	}
	var out solve.DiagnosticReport
	if err := jsonutil.UnmarshalRaw(raw, &out); err != nil {
		return nil, &solve.StageError{Stage: solve.StageVerify, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := validateReport(&out); err != nil {
		return nil, &solve.StageError{Stage: solve.StageVerify, Err: err}
	}
	return &out, nil
}

func validateReport(r *solve.DiagnosticReport) error {
	switch r.Status {
	case solve.StatusPassed, solve.StatusFatalError:
		return nil
	case solve.StatusNeedsRevision:
		if len(r.Issues) == 0 {
			return fmt.Errorf("needs_revision report has no issues")
		}
		if len(r.Suggestions) == 0 {
			return fmt.Errorf("needs_revision report has no suggestions")
		}
		switch r.FaultLocus {
		case solve.LocusUnderstand, solve.LocusPlan, solve.LocusExecute:
			return nil
		default:
			return fmt.Errorf("needs_revision report has invalid fault_locus_hint %q", r.FaultLocus)
		}
	default:
		return fmt.Errorf("unknown report status %q", r.Status)
	}
}
