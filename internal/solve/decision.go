package solve

import "context"

// Action is the Decision Oracle's choice of what the run does next.
type Action string

const (
	ActionUnderstand Action = "understand"
	ActionPlan       Action = "plan"
	ActionExecute    Action = "execute"
	ActionVerify     Action = "verify"
	ActionComplete   Action = "complete"
)

// StageKind returns the stage a routing action dispatches to, and false
// for ActionComplete.
func (a Action) StageKind() (StageKind, bool) {
	switch a {
	case ActionUnderstand, ActionPlan, ActionExecute, ActionVerify:
		return StageKind(a), true
	}
	return "", false
}

// Valid reports whether a is one of the five known actions.
func (a Action) Valid() bool {
	if _, ok := a.StageKind(); ok {
		return true
	}
	return a == ActionComplete
}

// Decision is the Oracle's per-cycle output. Continue == false forces
// termination regardless of NextAction.
type Decision struct {
	NextAction Action `json:"next_action"`
	Reasoning  string `json:"reasoning"`
	Continue   bool   `json:"continue_run"`
}

// Oracle chooses the next action each cycle from the full run context.
// Implementations are swappable: a static rule table and an LLM-backed
// policy both conform. Any implementation must honor the contract:
//
//  1. never return ActionComplete unless the latest report passed (or
//     Continue is false with a documented reason);
//  2. return Continue == false once the iteration budget is exhausted;
//  3. be deterministic for an identical RunContext snapshot when used as
//     a conformance stub.
type Oracle interface {
	Decide(ctx context.Context, rc *RunContext) (Decision, error)
}

// Composer assembles the final deliverable once the run reaches an
// accepting terminal state. A failure here is a programming-contract
// violation, not a recoverable run failure.
type Composer interface {
	Compose(rc *RunContext) (*FinalAnswer, error)
}
