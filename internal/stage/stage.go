// Package stage implements the four LLM-backed pipeline capabilities:
// Understand, Plan, Execute and Verify. Each capability is a pure unit:
// it reads a ContextView, calls the model, validates the structured
// output, and returns it. Routing and state belong to the orchestrator.
package stage

import (
	"context"
	"errors"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

// classify maps a raw capability error onto the solve error taxonomy.
// Transport errors that retries cannot fix and caller cancellation are
// fatal; everything else (malformed output, transient failures) is a
// recoverable attempt the oracle may re-route.
func classify(kind solve.StageKind, err error) error {
	if llm.IsPermanent(err) || errors.Is(err, context.Canceled) {
		return &solve.StageFatal{Stage: kind, Err: err}
	}
	return &solve.StageError{Stage: kind, Err: err}
}
