package solve

import (
	"context"
	"fmt"
)

// StageKind identifies one of the four pipeline capabilities.
type StageKind string

const (
	StageUnderstand StageKind = "understand"
	StagePlan       StageKind = "plan"
	StageExecute    StageKind = "execute"
	StageVerify     StageKind = "verify"
)

// Phase maps a stage kind onto the run phase it occupies.
func (k StageKind) Phase() Phase { return Phase(k) }

// StageOutput is the structured result of one capability invocation.
// Outputs are atomic: a new output fully replaces the previous one.
type StageOutput interface {
	Stage() StageKind
}

// ContextView is the read-only projection of a RunContext handed to a
// capability. Capabilities never see, let alone mutate, the RunContext
// itself; routing stays with the Orchestrator.
type ContextView struct {
	Problem       string            `json:"problem"`
	Attempt       int               `json:"attempt"`
	Comprehension *Comprehension    `json:"comprehension,omitempty"`
	Plan          *Plan             `json:"plan,omitempty"`
	Execution     *Execution        `json:"execution,omitempty"`
	Report        *DiagnosticReport `json:"diagnostic_report,omitempty"`
	Suggestions   []string          `json:"suggestions,omitempty"`
}

// Capability is one pluggable pipeline unit. Invoke must be side-effect
// free with respect to run state: it returns a value or an error and
// nothing else. A recoverable content-level failure is reported as
// *StageError, an unrecoverable one as *StageFatal.
type Capability interface {
	Kind() StageKind
	Invoke(ctx context.Context, view ContextView) (StageOutput, error)
}

// StageError marks a recoverable failure: the capability could not produce
// a valid output this attempt. The Orchestrator records it and lets the
// Decision Oracle re-route.
type StageError struct {
	Stage StageKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageFatal marks an unrecoverable failure: the run cannot proceed.
type StageFatal struct {
	Stage StageKind
	Err   error
}

func (e *StageFatal) Error() string {
	return fmt.Sprintf("stage %s: fatal: %v", e.Stage, e.Err)
}

func (e *StageFatal) Unwrap() error { return e.Err }
