package runstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

func terminalRun(t *testing.T) *solve.RunContext {
	t.Helper()
	rc := solve.NewRunContext("what is 6*7?", 10)
	rc.Phase = solve.PhaseComplete
	rc.IterationCount = 4
	rc.FinalAnswer = &solve.FinalAnswer{Answer: "42", Confidence: 0.95}
	return rc
}

func TestFromRun(t *testing.T) {
	rec, err := FromRun("run-1", terminalRun(t))
	require.NoError(t, err)
	require.Equal(t, "run-1", rec.RunID)
	require.Equal(t, solve.PhaseComplete, rec.Phase)
	require.Equal(t, "42", rec.Answer)
	require.NotEmpty(t, rec.Snapshot)
	require.False(t, rec.CreatedAt.IsZero())
}

func TestFromRun_RejectsLiveRun(t *testing.T) {
	rc := terminalRun(t)
	rc.Phase = solve.PhaseExecute
	_, err := FromRun("run-1", rc)
	require.Error(t, err)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")

	store := New(path)
	rec, err := FromRun("run-1", terminalRun(t))
	require.NoError(t, err)
	require.NoError(t, store.Put(rec))

	failed := terminalRun(t)
	failed.Phase = solve.PhaseFailed
	failed.FailureReason = solve.FailureBudgetExceeded
	failed.FinalAnswer = nil
	rec2, err := FromRun("run-2", failed)
	require.NoError(t, err)
	require.NoError(t, store.Put(rec2))

	// A fresh store reads back what the first one wrote.
	reopened := New(path)
	got, ok := reopened.Get("run-1")
	require.True(t, ok)
	require.Equal(t, "42", got.Answer)
	require.Equal(t, 4, got.IterationCount)

	got2, ok := reopened.Get("run-2")
	require.True(t, ok)
	require.Equal(t, string(solve.FailureBudgetExceeded), got2.FailureReason)

	require.Len(t, reopened.List(), 2)

	_, ok = reopened.Get("missing")
	require.False(t, ok)
}

func TestFileStore_RequiresRunID(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "runs.json"))
	require.Error(t, store.Put(Record{}))
}
