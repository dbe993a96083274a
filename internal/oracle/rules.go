// Package oracle implements Decision Oracle policies: a deterministic
// rule table used as the default and in tests, and an LLM-backed policy
// whose output is clamped to the oracle contract.
package oracle

import (
	"context"
	"fmt"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

// DefaultRetryLimits caps consecutive failed attempts per stage before
// the run is abandoned. Execute gets more headroom: tool calls are the
// flakiest part of a run.
var DefaultRetryLimits = map[solve.StageKind]int{
	solve.StageUnderstand: 3,
	solve.StagePlan:       3,
	solve.StageExecute:    5,
	solve.StageVerify:     3,
}

// hintEscalationAfter is how many consecutive needs_revision verdicts are
// tolerated before routing one stage earlier than the verifier's hint.
const hintEscalationAfter = 3

// Rules is the deterministic Decision Oracle. Identical run contexts
// always produce identical decisions.
type Rules struct {
	// RetryLimits overrides DefaultRetryLimits when non-nil.
	RetryLimits map[solve.StageKind]int
}

func (r *Rules) retryLimit(kind solve.StageKind) int {
	if r.RetryLimits != nil {
		if n, ok := r.RetryLimits[kind]; ok {
			return n
		}
	}
	return DefaultRetryLimits[kind]
}

func (r *Rules) Decide(_ context.Context, rc *solve.RunContext) (solve.Decision, error) {
	if rc.IterationCount >= rc.MaxIterations {
		return solve.Decision{
			NextAction: solve.ActionVerify,
			Reasoning:  "iteration budget exhausted",
			Continue:   false,
		}, nil
	}

	next := nextStage(rc)

	// Abandon a stage that keeps failing rather than burn the whole budget
	// on it.
	if n := trailingFailures(rc, next); n >= r.retryLimit(next) {
		return solve.Decision{
			NextAction: solve.Action(next),
			Reasoning:  fmt.Sprintf("%s failed %d consecutive attempts", next, n),
			Continue:   false,
		}, nil
	}

	if next == solve.StageVerify && reportCurrent(rc) {
		return r.decideOnReport(rc)
	}

	return solve.Decision{
		NextAction: solve.Action(next),
		Reasoning:  fmt.Sprintf("pipeline progression: %s output is missing or stale", next),
		Continue:   true,
	}, nil
}

// decideOnReport routes on a verification verdict that covers the latest
// execution.
func (r *Rules) decideOnReport(rc *solve.RunContext) (solve.Decision, error) {
	report := rc.Report
	switch report.Status {
	case solve.StatusPassed:
		return solve.Decision{
			NextAction: solve.ActionComplete,
			Reasoning:  "verification passed",
			Continue:   false,
		}, nil

	case solve.StatusFatalError:
		// One re-check before giving up: a single fatal verdict can be a
		// misread of the problem statement.
		if consecutiveVerdicts(rc, solve.StatusFatalError) >= 2 {
			return solve.Decision{
				NextAction: solve.ActionVerify,
				Reasoning:  "verifier judged the problem unsolvable twice",
				Continue:   false,
			}, nil
		}
		return solve.Decision{
			NextAction: solve.ActionVerify,
			Reasoning:  "fatal verdict, re-checking once before abandoning",
			Continue:   true,
		}, nil

	case solve.StatusNeedsRevision:
		target := routeTarget(report.FaultLocus)
		if consecutiveVerdicts(rc, solve.StatusNeedsRevision) >= hintEscalationAfter {
			target = escalate(target)
		}
		return solve.Decision{
			NextAction: solve.Action(target),
			Reasoning:  fmt.Sprintf("revision needed, fault hint %q, routing to %s", report.FaultLocus, target),
			Continue:   true,
		}, nil

	default:
		return solve.Decision{}, fmt.Errorf("oracle: unknown report status %q", report.Status)
	}
}

// nextStage picks the earliest stage whose output is missing or older
// than its upstream input, using ledger positions of the last successful
// run of each stage.
func nextStage(rc *solve.RunContext) solve.StageKind {
	u := lastSuccess(rc, solve.StageUnderstand)
	p := lastSuccess(rc, solve.StagePlan)
	e := lastSuccess(rc, solve.StageExecute)
	switch {
	case u == 0:
		return solve.StageUnderstand
	case p < u:
		return solve.StagePlan
	case e < p:
		return solve.StageExecute
	default:
		return solve.StageVerify
	}
}

// reportCurrent reports whether the latest verification covers the latest
// execution.
func reportCurrent(rc *solve.RunContext) bool {
	if rc.Report == nil {
		return false
	}
	return lastSuccess(rc, solve.StageVerify) > lastSuccess(rc, solve.StageExecute)
}

// lastSuccess returns the ledger sequence of the stage's most recent
// successful record, or 0.
func lastSuccess(rc *solve.RunContext, kind solve.StageKind) int {
	for i := len(rc.Ledger) - 1; i >= 0; i-- {
		rec := rc.Ledger[i]
		if rec.Stage == kind && !rec.Failed {
			return rec.Sequence
		}
	}
	return 0
}

// trailingFailures counts the stage's consecutive failed records at the
// tail of its own history.
func trailingFailures(rc *solve.RunContext, kind solve.StageKind) int {
	n := 0
	for i := len(rc.Ledger) - 1; i >= 0; i-- {
		rec := rc.Ledger[i]
		if rec.Stage != kind {
			continue
		}
		if !rec.Failed {
			break
		}
		n++
	}
	return n
}

// consecutiveVerdicts counts trailing successful verify records carrying
// the given verdict, skipping interleaved records of other stages.
func consecutiveVerdicts(rc *solve.RunContext, status solve.ReportStatus) int {
	n := 0
	for i := len(rc.Ledger) - 1; i >= 0; i-- {
		rec := rc.Ledger[i]
		if rec.Stage != solve.StageVerify || rec.Failed {
			continue
		}
		if rec.Verdict != status {
			break
		}
		n++
	}
	return n
}

func routeTarget(locus solve.FaultLocus) solve.StageKind {
	switch locus {
	case solve.LocusUnderstand:
		return solve.StageUnderstand
	case solve.LocusPlan:
		return solve.StagePlan
	default:
		// The hint is advisory; an absent or unknown locus defaults to the
		// cheapest revision point.
		return solve.StageExecute
	}
}

// escalate moves the revision target one stage earlier when repeated
// routes to the hinted stage keep failing verification.
func escalate(kind solve.StageKind) solve.StageKind {
	switch kind {
	case solve.StageExecute:
		return solve.StagePlan
	case solve.StagePlan:
		return solve.StageUnderstand
	default:
		return solve.StageUnderstand
	}
}
