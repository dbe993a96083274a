package oracle

import (
	"context"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/util/jsonutil"
)

const promptDecide = `You are routing a multi-stage mathematical problem-solving run.

Input JSON provides the full run state: problem, current phase, iteration
count and budget, the per-iteration ledger, the latest diagnostic report
and which stage outputs exist.

Choose the single next action:
- "understand": (re)analyze the problem
- "plan": (re)build the execution plan
- "execute": (re)run the computation
- "verify": audit the current solution attempt
- "complete": finish the run; allowed ONLY when the latest report status is "passed"

Return STRICT JSON:
{"next_action": "understand|plan|execute|verify|complete",
 "reasoning": "string",
 "continue_run": true}

Rules:
- Set continue_run to false only when the run should stop (passed, budget
  exhausted, or the problem is unsolvable).
- Prefer the cheapest revision that can fix the reported issues, but you
  are free to override the report's fault_locus_hint; it is advisory.
- JSON only; no comments or trailing commas.
`

// LLM is the model-backed Decision Oracle. Model output is clamped to the
// oracle contract; a decision the contract forbids falls back to the rule
// table, so the orchestrator's guarantees never depend on model behavior.
type LLM struct {
	Client llm.Client
	rules  Rules
}

func (o *LLM) Decide(ctx context.Context, rc *solve.RunContext) (solve.Decision, error) {
	// Budget exhaustion is not the model's call.
	if rc.IterationCount >= rc.MaxIterations {
		return o.rules.Decide(ctx, rc)
	}

	input := decideInput{
		Problem:        rc.Problem,
		Phase:          rc.Phase,
		IterationCount: rc.IterationCount,
		MaxIterations:  rc.MaxIterations,
		Ledger:         rc.Ledger,
		Report:         rc.Report,
		HaveOutputs:    haveOutputs(rc),
	}
	raw, err := o.Client.GenerateJSON(llm.WithPhase(ctx, "oracle"), promptDecide, input)
	if err != nil {
		return solve.Decision{}, fmt.Errorf("oracle: %w", err)
	}
	var d solve.Decision
	if err := jsonutil.UnmarshalRaw(raw, &d); err != nil {
		return solve.Decision{}, fmt.Errorf("oracle: invalid decision JSON: %w", err)
	}

	if !d.NextAction.Valid() {
		return o.rules.Decide(ctx, rc)
	}
	if d.NextAction == solve.ActionComplete && !rc.Report.Passed() {
		return o.rules.Decide(ctx, rc)
	}
	return d, nil
}

type decideInput struct {
	Problem        string                   `json:"problem"`
	Phase          solve.Phase              `json:"phase"`
	IterationCount int                      `json:"iteration_count"`
	MaxIterations  int                      `json:"max_iterations"`
	Ledger         []solve.IterationRecord  `json:"ledger"`
	Report         *solve.DiagnosticReport  `json:"diagnostic_report,omitempty"`
	HaveOutputs    map[solve.StageKind]bool `json:"have_outputs"`
}

func haveOutputs(rc *solve.RunContext) map[solve.StageKind]bool {
	have := make(map[solve.StageKind]bool, len(rc.Outputs))
	for kind := range rc.Outputs {
		have[kind] = true
	}
	return have
}
