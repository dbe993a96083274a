package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FallenAngels520/math-multi-agent/internal/compose"
	"github.com/FallenAngels520/math-multi-agent/internal/event"
	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/mathtool"
	"github.com/FallenAngels520/math-multi-agent/internal/oracle"
	"github.com/FallenAngels520/math-multi-agent/internal/runstore"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/stage"
)

// liveRun is one in-flight solve. Its event channel has a single consumer
// (the first watcher); the archive is the source of truth once terminal.
type liveRun struct {
	problem string
	events  chan event.Event

	mu     sync.Mutex
	rc     *solve.RunContext
	errMsg string
}

func (r *liveRun) finish(rc *solve.RunContext, err error) {
	r.mu.Lock()
	r.rc = rc
	if err != nil {
		r.errMsg = err.Error()
	}
	r.mu.Unlock()
	close(r.events)
}

func (r *liveRun) status() (phase solve.Phase, done bool, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rc == nil {
		return "", false, ""
	}
	return r.rc.Phase, true, r.errMsg
}

type apiServer struct {
	client       llm.Client
	tools        *mathtool.Registry
	store        *runstore.Store
	artifacts    artifactReader
	useLLMOracle bool
	runTimeout   time.Duration

	// retention keeps a finished run reachable for late watchers before
	// it is evicted from the live map; the archive serves it afterwards.
	retention time.Duration

	mu   sync.RWMutex
	runs map[string]*liveRun
}

func newAPIServer(client llm.Client, tools *mathtool.Registry, store *runstore.Store, useLLMOracle bool) *apiServer {
	return &apiServer{
		client:       client,
		tools:        tools,
		store:        store,
		useLLMOracle: useLLMOracle,
		runTimeout:   10 * time.Minute,
		retention:    30 * time.Second,
		runs:         make(map[string]*liveRun),
	}
}

func (s *apiServer) orchestrator(maxIters int) *solve.Orchestrator {
	if maxIters <= 0 {
		maxIters = solve.DefaultMaxIterations
	}
	var decider solve.Oracle = &oracle.Rules{}
	if s.useLLMOracle {
		decider = &oracle.LLM{Client: s.client}
	}
	return &solve.Orchestrator{
		Oracle: decider,
		Stages: map[solve.StageKind]solve.Capability{
			solve.StageUnderstand: &stage.Understand{LLM: s.client},
			solve.StagePlan:       &stage.Plan{LLM: s.client},
			solve.StageExecute:    &stage.Execute{LLM: s.client, Tools: s.tools},
			solve.StageVerify:     &stage.Verify{LLM: s.client},
		},
		Composer:      compose.Composer{},
		MaxIterations: maxIters,
	}
}

func (s *apiServer) lookupRun(runID string) (*liveRun, bool) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	return run, ok
}

// handleSolve starts a run and returns its id; progress streams via
// /api/watch/{run_id} or the websocket endpoint.
func (s *apiServer) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Problem       string `json:"problem"`
		MaxIterations int    `json:"max_iterations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	problem := strings.TrimSpace(in.Problem)
	if problem == "" {
		http.Error(w, "problem is required", http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	run := &liveRun{
		problem: problem,
		events:  make(chan event.Event, 256),
	}
	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go s.executeRun(runID, run, in.MaxIterations)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"run_id": runID})
}

func (s *apiServer) executeRun(runID string, run *liveRun, maxIters int) {
	ctx, cancel := contextWithTimeout(s.runTimeout)
	defer cancel()
	ctx = event.WithEmitter(ctx, &event.ChannelEmitter{Ch: run.events})

	rc, err := s.orchestrator(maxIters).Solve(ctx, run.problem)
	run.finish(rc, err)

	if rc != nil {
		if rec, recErr := runstore.FromRun(runID, rc); recErr == nil {
			_ = s.store.Put(rec)
		}
	}
	s.scheduleEvict(runID)
}

// scheduleEvict drops the finished run from the live map after the
// retention window so the map stays bounded across many runs.
func (s *apiServer) scheduleEvict(runID string) {
	evict := func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	}
	if s.retention <= 0 {
		evict()
		return
	}
	time.AfterFunc(s.retention, evict)
}

// handleRuns serves GET /api/runs (archive list), GET /api/runs/{id} and
// GET /api/runs/{id}/artifacts[/{path}].
func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/")

	if rest == "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"runs": s.store.List()})
		return
	}

	runID, sub, _ := strings.Cut(rest, "/")
	if sub == "artifacts" || strings.HasPrefix(sub, "artifacts/") {
		s.handleArtifacts(w, r, runID, strings.TrimPrefix(sub, "artifacts"))
		return
	}
	if sub != "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if rec, ok := s.store.Get(runID); ok {
		_ = json.NewEncoder(w).Encode(rec)
		return
	}
	if run, ok := s.lookupRun(runID); ok {
		phase, done, errMsg := run.status()
		out := map[string]any{
			"run_id":  runID,
			"problem": run.problem,
			"done":    done,
		}
		if done {
			out["phase"] = phase
		} else {
			out["phase"] = "running"
		}
		if errMsg != "" {
			out["error"] = errMsg
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}
	http.Error(w, "run not found", http.StatusNotFound)
}
