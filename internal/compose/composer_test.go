package compose

import (
	"strings"
	"testing"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

func completedRun() *solve.RunContext {
	rc := solve.NewRunContext("what is 6*7?", 10)
	rc.Phase = solve.PhaseComplete
	rc.Outputs[solve.StageUnderstand] = &solve.Comprehension{
		NormalizedProblem: "compute 6*7",
		Objectives:        []string{"the product"},
		ProblemType:       solve.ProblemAlgebra,
	}
	rc.Outputs[solve.StagePlan] = &solve.Plan{Approach: "multiply directly"}
	rc.Outputs[solve.StageExecute] = &solve.Execution{
		Steps:           []string{"6 * 7 = 42"},
		CandidateAnswer: "42",
		Trace:           []solve.ToolExecution{{Tool: "wolfram_alpha", Query: "6*7", Output: "42"}},
	}
	rc.Report = &solve.DiagnosticReport{Status: solve.StatusPassed, Confidence: 0.95}
	rc.IterationCount = 4
	return rc
}

func TestCompose_BuildsFinalAnswer(t *testing.T) {
	fa, err := Composer{}.Compose(completedRun())
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if fa.Answer != "42" {
		t.Fatalf("answer = %q, want 42", fa.Answer)
	}
	if fa.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", fa.Confidence)
	}
	if len(fa.Steps) != 1 {
		t.Fatalf("steps = %v, want the execution steps", fa.Steps)
	}
	if !strings.Contains(fa.Summary, "multiply directly") {
		t.Fatalf("summary missing approach: %q", fa.Summary)
	}
}

func TestCompose_RejectsMissingAnswer(t *testing.T) {
	rc := completedRun()
	rc.Outputs[solve.StageExecute] = &solve.Execution{CandidateAnswer: "  "}
	if _, err := (Composer{}).Compose(rc); err == nil {
		t.Fatal("expected error for missing candidate answer")
	}
}

func TestCompose_RejectsUnverifiedRun(t *testing.T) {
	rc := completedRun()
	rc.Report = &solve.DiagnosticReport{Status: solve.StatusNeedsRevision}
	if _, err := (Composer{}).Compose(rc); err == nil {
		t.Fatal("expected error for unverified run")
	}
}
