package llm

import (
	"context"
	"encoding/json"
)

// FakeClient returns deterministic, minimal JSON payloads per phase for
// offline runs and testing.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	phase := PhaseFrom(ctx)
	var obj any
	switch phase {
	case "understand":
		obj = map[string]any{
			"normalized_problem": "fake normalized problem",
			"givens":             []string{"fake given"},
			"objectives":         []string{"fake objective"},
			"primary_field":      "algebra",
			"strategy":           "solve directly",
			"problem_type":       "algebra",
		}
	case "plan":
		obj = map[string]any{
			"approach": "single direct computation",
			"tasks": []any{
				map[string]any{
					"task_id":     "t1",
					"description": "compute the answer",
					"method":      "internal_reasoning",
					"output_id":   "answer",
				},
			},
			"expected_form": "a number",
		}
	case "execute":
		obj = map[string]any{
			"action": "final",
			"final": map[string]any{
				"steps":            []string{"fake step"},
				"workspace":        map[string]string{"answer": "42"},
				"candidate_answer": "42",
			},
		}
	case "verify":
		obj = map[string]any{
			"status":     "passed",
			"rationale":  "fake verification passed",
			"confidence": 0.9,
		}
	case "oracle":
		obj = map[string]any{
			"next_action":  "understand",
			"reasoning":    "fake decision",
			"continue_run": true,
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}
