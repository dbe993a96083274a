package solve

import "fmt"

// Phase is the logical position of a run inside the solve loop.
type Phase string

const (
	PhaseUnderstand Phase = "understand"
	PhasePlan       Phase = "plan"
	PhaseExecute    Phase = "execute"
	PhaseVerify     Phase = "verify"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool { return p == PhaseComplete || p == PhaseFailed }

// FailureReason classifies why a run reached PhaseFailed.
type FailureReason string

const (
	// FailureBudgetExceeded covers both a run hitting the iteration ceiling
	// and the Oracle abandoning it early (retry limits exhausted); in the
	// second case RunContext.FailureDetail carries the Oracle's reasoning.
	FailureBudgetExceeded     FailureReason = "budget_exceeded"
	FailureFatalError         FailureReason = "fatal_error"
	FailureInvalidTermination FailureReason = "invalid_termination"
)

// IterationRecord is one ledger row. Records are immutable once appended.
type IterationRecord struct {
	Sequence      int         `json:"sequence"`
	Stage         StageKind   `json:"stage"`
	OutputVersion int         `json:"output_version"`
	Verdict       ReportStatus `json:"verdict,omitempty"`
	Failed        bool        `json:"failed,omitempty"`
	FailureDetail string      `json:"failure_detail,omitempty"`
	ActionTaken   Action      `json:"action_taken"`
}

// RunContext aggregates all state for one problem-solving attempt. It is
// mutated exclusively by the Orchestrator; capabilities only ever see
// read-only ContextView projections of it.
type RunContext struct {
	Problem        string                    `json:"problem"`
	Phase          Phase                     `json:"phase"`
	Outputs        map[StageKind]StageOutput `json:"stage_outputs"`
	Report         *DiagnosticReport         `json:"diagnostic_report,omitempty"`
	IterationCount int                       `json:"iteration_count"`
	MaxIterations  int                       `json:"max_iterations"`
	Ledger         []IterationRecord         `json:"ledger"`
	FinalAnswer    *FinalAnswer              `json:"final_answer,omitempty"`
	FailureReason  FailureReason             `json:"failure_reason,omitempty"`
	FailureDetail  string                    `json:"failure_detail,omitempty"`
}

// NewRunContext creates the initial context for a problem.
func NewRunContext(problem string, maxIterations int) *RunContext {
	return &RunContext{
		Problem:       problem,
		Phase:         PhaseUnderstand,
		Outputs:       make(map[StageKind]StageOutput),
		MaxIterations: maxIterations,
	}
}

// Comprehension returns the latest Understand output, or nil.
func (rc *RunContext) Comprehension() *Comprehension {
	if out, ok := rc.Outputs[StageUnderstand].(*Comprehension); ok {
		return out
	}
	return nil
}

// Plan returns the latest Plan output, or nil.
func (rc *RunContext) Plan() *Plan {
	if out, ok := rc.Outputs[StagePlan].(*Plan); ok {
		return out
	}
	return nil
}

// Execution returns the latest Execute output, or nil.
func (rc *RunContext) Execution() *Execution {
	if out, ok := rc.Outputs[StageExecute].(*Execution); ok {
		return out
	}
	return nil
}

// LastRecord returns the most recent ledger row, or nil for a fresh run.
func (rc *RunContext) LastRecord() *IterationRecord {
	if len(rc.Ledger) == 0 {
		return nil
	}
	return &rc.Ledger[len(rc.Ledger)-1]
}

// outputVersion counts how many successful outputs a stage has produced.
func (rc *RunContext) outputVersion(kind StageKind) int {
	n := 0
	for _, rec := range rc.Ledger {
		if rec.Stage == kind && !rec.Failed {
			n++
		}
	}
	return n
}

// viewFor builds the read-only projection handed to a capability. Each
// stage receives the outputs of the stages upstream of it; Verify receives
// everything produced so far. Suggestions from the latest report are only
// forwarded when its fault locus targets the invoked stage.
func (rc *RunContext) viewFor(kind StageKind) ContextView {
	view := ContextView{
		Problem: rc.Problem,
		Attempt: rc.outputVersion(kind) + 1,
	}
	switch kind {
	case StageUnderstand:
		// problem only
	case StagePlan:
		view.Comprehension = rc.Comprehension()
	case StageExecute:
		view.Comprehension = rc.Comprehension()
		view.Plan = rc.Plan()
	case StageVerify:
		view.Comprehension = rc.Comprehension()
		view.Plan = rc.Plan()
		view.Execution = rc.Execution()
		view.Report = rc.Report
	}
	if kind != StageVerify && rc.Report != nil && rc.Report.FaultLocus == FaultLocus(kind) {
		view.Suggestions = rc.Report.Suggestions
	}
	return view
}

func (rc *RunContext) appendSuccess(kind StageKind, action Action, out StageOutput) {
	rc.Outputs[kind] = out
	rec := IterationRecord{
		Sequence:      len(rc.Ledger) + 1,
		Stage:         kind,
		OutputVersion: rc.outputVersion(kind) + 1,
		ActionTaken:   action,
	}
	if report, ok := out.(*DiagnosticReport); ok {
		rc.Report = report
		rec.Verdict = report.Status
	}
	rc.Ledger = append(rc.Ledger, rec)
	rc.IterationCount = len(rc.Ledger)
}

func (rc *RunContext) appendFailure(kind StageKind, action Action, err error) {
	rc.Ledger = append(rc.Ledger, IterationRecord{
		Sequence:      len(rc.Ledger) + 1,
		Stage:         kind,
		OutputVersion: rc.outputVersion(kind),
		Failed:        true,
		FailureDetail: err.Error(),
		ActionTaken:   action,
	})
	rc.IterationCount = len(rc.Ledger)
}

func (rc *RunContext) fail(reason FailureReason) {
	rc.Phase = PhaseFailed
	rc.FailureReason = reason
}

// FinalAnswer is the composed deliverable of a completed run.
type FinalAnswer struct {
	Answer     string   `json:"answer"`
	Summary    string   `json:"summary"`
	Steps      []string `json:"steps,omitempty"`
	Confidence float64  `json:"confidence"`
}

func (fa *FinalAnswer) String() string {
	if fa == nil {
		return ""
	}
	return fmt.Sprintf("%s (confidence %.2f)", fa.Answer, fa.Confidence)
}
