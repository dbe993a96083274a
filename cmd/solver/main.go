package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/FallenAngels520/math-multi-agent/internal/compose"
	"github.com/FallenAngels520/math-multi-agent/internal/event"
	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/mathtool"
	"github.com/FallenAngels520/math-multi-agent/internal/oracle"
	"github.com/FallenAngels520/math-multi-agent/internal/runstore"
	"github.com/FallenAngels520/math-multi-agent/internal/solve"
	"github.com/FallenAngels520/math-multi-agent/internal/stage"
)

func main() {
	problem := flag.String("problem", "", "problem statement to solve")
	maxIters := flag.Int("max-iterations", solve.DefaultMaxIterations, "iteration budget for the run")
	model := flag.String("model", llm.DefaultGeminiModel, "Gemini model name")
	useFake := flag.Bool("fake", false, "use the deterministic fake LLM (offline)")
	useLLMOracle := flag.Bool("llm-oracle", false, "route with the model-backed oracle instead of the rule table")
	storePath := flag.String("store", "runs.json", "run archive path (file backend)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	_ = godotenv.Load()

	if *problem == "" {
		fmt.Fprintln(os.Stderr, "usage: solver -problem \"...\"")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := buildClient(ctx, *useFake, *model)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	defer client.Close()

	tools := mathtool.NewRegistry()
	if wolfram, err := mathtool.NewWolfram(mathtool.WolframConfig{}); err == nil {
		tools.Register(wolfram)
	} else if !*useFake {
		log.Printf("wolfram tool disabled: %v", err)
	}

	var decider solve.Oracle = &oracle.Rules{}
	if *useLLMOracle {
		decider = &oracle.LLM{Client: client}
	}

	orch := &solve.Orchestrator{
		Oracle: decider,
		Stages: map[solve.StageKind]solve.Capability{
			solve.StageUnderstand: &stage.Understand{LLM: client},
			solve.StagePlan:       &stage.Plan{LLM: client},
			solve.StageExecute:    &stage.Execute{LLM: client, Tools: tools},
			solve.StageVerify:     &stage.Verify{LLM: client},
		},
		Composer:      compose.Composer{},
		MaxIterations: *maxIters,
	}

	events := make(chan event.Event, 64)
	go func() {
		for ev := range events {
			switch ev.Type {
			case event.TypeStageStart:
				log.Printf("[%d] %s ...", ev.Sequence, ev.Stage)
			case event.TypeStageDone:
				log.Printf("[%d] %s done (%d%%)", ev.Sequence, ev.Stage, ev.Progress)
			case event.TypeError:
				log.Printf("[%d] %s failed: %s", ev.Sequence, ev.Stage, ev.Message)
			}
		}
	}()
	ctx = event.WithEmitter(ctx, &event.ChannelEmitter{Ch: events})

	rc, err := orch.Solve(ctx, *problem)
	close(events)
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	runID := uuid.NewString()
	archive(runID, rc, *storePath)

	switch rc.Phase {
	case solve.PhaseComplete:
		fmt.Printf("run %s completed in %d iterations\n", runID, rc.IterationCount)
		fmt.Println(rc.FinalAnswer)
		for i, step := range rc.FinalAnswer.Steps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	default:
		fmt.Printf("run %s failed after %d iterations: %s\n", runID, rc.IterationCount, rc.FailureReason)
		if rc.FailureDetail != "" {
			fmt.Printf("reason: %s\n", rc.FailureDetail)
		}
		if last := rc.LastRecord(); last != nil && last.FailureDetail != "" {
			fmt.Printf("last error: %s\n", last.FailureDetail)
		}
		os.Exit(1)
	}
}

func buildClient(ctx context.Context, fake bool, model string) (llm.Client, error) {
	if fake {
		return llm.NewFakeClient(), nil
	}
	gemini, err := llm.NewGeminiClient(ctx, model)
	if err != nil {
		return nil, err
	}
	return llm.Wrap(gemini,
		llm.WithLogging(nil),
		llm.Retry(3, 500*time.Millisecond),
		llm.RateLimitFromEnv("LLM", "GEMINI"),
	), nil
}

// archive persists the terminal snapshot and, when configured, uploads the
// final answer to the artifact bucket. Archive failures do not fail the run.
func archive(runID string, rc *solve.RunContext, storePath string) {
	rec, err := runstore.FromRun(runID, rc)
	if err != nil {
		log.Printf("archive: %v", err)
		return
	}
	store := runstore.NewFromEnv(storePath)
	defer store.Close()
	if err := store.Put(rec); err != nil {
		log.Printf("archive: %v", err)
	}

	if rc.FinalAnswer == nil {
		return
	}
	cfg, ok := runstore.S3ConfigFromEnv()
	if !ok {
		return
	}
	artifacts, err := runstore.NewArtifactStore(cfg)
	if err != nil {
		log.Printf("artifact store: %v", err)
		return
	}
	uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := artifacts.PutAnswer(uploadCtx, runID, rc.FinalAnswer); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("artifact upload: %v", err)
	}
}
