// Package compose assembles the final deliverable of a completed run.
package compose

import (
	"fmt"
	"strings"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

// Composer builds a FinalAnswer from the accumulated stage outputs. It is
// only invoked once a run is eligible to complete, so missing inputs mean
// the orchestrator or oracle broke contract.
type Composer struct{}

func (Composer) Compose(rc *solve.RunContext) (*solve.FinalAnswer, error) {
	exec := rc.Execution()
	if exec == nil || strings.TrimSpace(exec.CandidateAnswer) == "" {
		return nil, fmt.Errorf("compose: run completed without a candidate answer")
	}
	if !rc.Report.Passed() {
		return nil, fmt.Errorf("compose: run completed without a passed verification")
	}

	fa := &solve.FinalAnswer{
		Answer:     exec.CandidateAnswer,
		Steps:      exec.Steps,
		Confidence: rc.Report.Confidence,
	}
	fa.Summary = summarize(rc, exec)
	return fa, nil
}

func summarize(rc *solve.RunContext, exec *solve.Execution) string {
	var b strings.Builder
	if c := rc.Comprehension(); c != nil {
		fmt.Fprintf(&b, "%s problem: %s", c.ProblemType, c.NormalizedProblem)
	} else {
		b.WriteString(rc.Problem)
	}
	if p := rc.Plan(); p != nil && p.Approach != "" {
		fmt.Fprintf(&b, "\nApproach: %s", p.Approach)
	}
	if n := len(exec.Trace); n > 0 {
		fmt.Fprintf(&b, "\nExternal computations: %d", n)
	}
	fmt.Fprintf(&b, "\nVerified in %d iterations.", rc.IterationCount)
	return b.String()
}
