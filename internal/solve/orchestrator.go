package solve

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/FallenAngels520/math-multi-agent/internal/event"
)

var (
	// ErrInvalidTermination marks a contract violation: the Oracle asked to
	// complete without a passed verdict, or the Composer found required
	// data missing. Always a defect, never an expected run outcome.
	ErrInvalidTermination = errors.New("solve: invalid termination")

	// ErrBadConfig marks Orchestrator misuse (missing collaborators or a
	// non-positive iteration budget).
	ErrBadConfig = errors.New("solve: invalid orchestrator configuration")
)

// Orchestrator owns the run state machine. It is the only component that
// mutates a RunContext: it asks the Oracle for the next action, dispatches
// to the chosen capability, appends to the ledger and decides the terminal
// outcome. Termination is guaranteed by the iteration budget regardless of
// Oracle behavior.
type Orchestrator struct {
	Oracle        Oracle
	Stages        map[StageKind]Capability
	Composer      Composer
	MaxIterations int
}

// DefaultMaxIterations bounds a run when the caller does not choose.
const DefaultMaxIterations = 10

func (o *Orchestrator) validate() error {
	if o.Oracle == nil {
		return fmt.Errorf("%w: oracle is nil", ErrBadConfig)
	}
	if o.Composer == nil {
		return fmt.Errorf("%w: composer is nil", ErrBadConfig)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrBadConfig, o.MaxIterations)
	}
	for _, kind := range []StageKind{StageUnderstand, StagePlan, StageExecute, StageVerify} {
		c, ok := o.Stages[kind]
		if !ok || c == nil {
			return fmt.Errorf("%w: missing %s capability", ErrBadConfig, kind)
		}
	}
	return nil
}

// Solve drives one problem to a terminal phase. The returned RunContext is
// always non-nil once configuration validates; BudgetExceeded and
// FatalError are normal outcomes communicated through it with a nil error.
// A non-nil error means a programming-contract violation or cancellation.
func (o *Orchestrator) Solve(ctx context.Context, problem string) (*RunContext, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	rc := NewRunContext(problem, o.MaxIterations)
	emitter := event.EmitterFrom(ctx)

	for {
		if err := ctx.Err(); err != nil {
			rc.fail(FailureFatalError)
			emitter.Emit(event.Event{Type: event.TypeError, Message: err.Error()})
			return rc, err
		}

		// Budget check first: the loop terminates no matter what the
		// Oracle or any capability does.
		if rc.IterationCount >= rc.MaxIterations {
			rc.fail(FailureBudgetExceeded)
			emitter.Emit(event.Event{Type: event.TypeError, Message: "iteration budget exhausted"})
			return rc, nil
		}

		decision, err := o.Oracle.Decide(ctx, rc)
		if err != nil {
			rc.fail(FailureFatalError)
			emitter.Emit(event.Event{Type: event.TypeError, Message: "oracle: " + err.Error()})
			return rc, nil
		}

		if !decision.Continue {
			if rc.Report.Passed() {
				return o.complete(rc, emitter)
			}
			if rc.Report != nil && rc.Report.Status == StatusFatalError {
				rc.fail(FailureFatalError)
			} else {
				rc.fail(FailureBudgetExceeded)
			}
			rc.FailureDetail = decision.Reasoning
			emitter.Emit(event.Event{Type: event.TypeError, Message: "oracle stopped run: " + decision.Reasoning})
			return rc, nil
		}

		if decision.NextAction == ActionComplete {
			if !rc.Report.Passed() {
				rc.fail(FailureInvalidTermination)
				log.Printf("solve: oracle requested complete without a passed verdict (reasoning: %s)", decision.Reasoning)
				emitter.Emit(event.Event{Type: event.TypeError, Message: "invalid termination"})
				return rc, fmt.Errorf("%w: complete requested without a passed verdict", ErrInvalidTermination)
			}
			return o.complete(rc, emitter)
		}

		kind, ok := decision.NextAction.StageKind()
		if !ok {
			rc.fail(FailureInvalidTermination)
			log.Printf("solve: oracle returned unknown action %q", decision.NextAction)
			return rc, fmt.Errorf("%w: unknown action %q", ErrInvalidTermination, decision.NextAction)
		}

		rc.Phase = kind.Phase()
		emitter.Emit(event.Event{
			Type:     event.TypeStageStart,
			Stage:    string(kind),
			Sequence: rc.IterationCount + 1,
			Progress: progressPercent(rc),
		})

		out, err := o.Stages[kind].Invoke(ctx, rc.viewFor(kind))
		if err != nil {
			var fatal *StageFatal
			if errors.As(err, &fatal) {
				rc.appendFailure(kind, decision.NextAction, err)
				rc.fail(FailureFatalError)
				emitter.Emit(event.Event{Type: event.TypeError, Stage: string(kind), Message: err.Error()})
				return rc, nil
			}
			// Anything else is a recoverable attempt: record it and let
			// the Oracle re-route on the next cycle.
			rc.appendFailure(kind, decision.NextAction, err)
			emitter.Emit(event.Event{Type: event.TypeLog, Stage: string(kind), Message: "attempt failed: " + err.Error()})
			continue
		}
		if out == nil || out.Stage() != kind {
			rc.appendFailure(kind, decision.NextAction, fmt.Errorf("capability returned output for %v, want %s", outStage(out), kind))
			continue
		}

		rc.appendSuccess(kind, decision.NextAction, out)
		emitter.Emit(event.Event{
			Type:     event.TypeStageDone,
			Stage:    string(kind),
			Sequence: rc.IterationCount,
			Progress: progressPercent(rc),
		})
	}
}

func (o *Orchestrator) complete(rc *RunContext, emitter event.Emitter) (*RunContext, error) {
	rc.Phase = PhaseComplete
	answer, err := o.Composer.Compose(rc)
	if err != nil {
		rc.fail(FailureInvalidTermination)
		log.Printf("solve: composer contract violation: %v", err)
		emitter.Emit(event.Event{Type: event.TypeError, Message: "compose: " + err.Error()})
		return rc, fmt.Errorf("%w: compose: %v", ErrInvalidTermination, err)
	}
	rc.FinalAnswer = answer
	emitter.Emit(event.Event{Type: event.TypeComplete, Message: answer.Answer, Progress: 100})
	return rc, nil
}

func progressPercent(rc *RunContext) int {
	if rc.MaxIterations <= 0 {
		return 0
	}
	p := rc.IterationCount * 100 / rc.MaxIterations
	if p > 100 {
		p = 100
	}
	return p
}

func outStage(out StageOutput) StageKind {
	if out == nil {
		return "nil"
	}
	return out.Stage()
}
