package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) Name() string { return "flaky" }
func (f *flakyClient) Close() error { return nil }
func (f *flakyClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

func TestRetry_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("transient")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("GenerateJSON error: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetry_StopsAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("transient")}
	cli := Wrap(inner, Retry(2, time.Millisecond))

	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want 2", inner.calls)
	}
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyClient{failures: 10, err: NewPermanentError(errors.New("bad api key"))}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	if !IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestRateLimit_SpacesRequests(t *testing.T) {
	inner := &flakyClient{}
	cli := Wrap(inner, RateLimit(10, 1))
	t.Cleanup(func() { _ = cli.Close() })

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
			t.Fatalf("GenerateJSON error: %v", err)
		}
	}
	// rps=10, burst=1: the second call waits ~100ms.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("elapsed = %v, want >= 50ms", elapsed)
	}
}

func TestRateLimit_CloseStopsLimiter(t *testing.T) {
	inner := &flakyClient{}
	// Long refill period: the only token is the prefilled burst.
	cli := Wrap(inner, RateLimit(0.001, 1))

	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("GenerateJSON error: %v", err)
	}
	if err := cli.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := cli.GenerateJSON(context.Background(), "p", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("error after Close = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
	// Second Close must not panic.
	if err := cli.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestWrap_AppliesLeftToRight(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			return &taggedClient{next: next, name: name, order: &order}
		}
	}
	inner := &flakyClient{}
	cli := Wrap(inner, tag("outer"), tag("inner"))
	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("GenerateJSON error: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("order = %v, want [outer inner]", order)
	}
}

type taggedClient struct {
	next  Client
	name  string
	order *[]string
}

func (c *taggedClient) Name() string { return c.next.Name() }
func (c *taggedClient) Close() error { return c.next.Close() }
func (c *taggedClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	*c.order = append(*c.order, c.name)
	return c.next.GenerateJSON(ctx, prompt, input)
}

func TestPhaseContext(t *testing.T) {
	ctx := context.Background()
	if got := PhaseFrom(ctx); got != "unknown" {
		t.Fatalf("PhaseFrom(empty) = %q, want unknown", got)
	}
	ctx = WithPhase(ctx, "verify")
	if got := PhaseFrom(ctx); got != "verify" {
		t.Fatalf("PhaseFrom = %q, want verify", got)
	}
}

func TestFakeClient_PhaseKeyedPayloads(t *testing.T) {
	f := NewFakeClient()
	raw, err := f.GenerateJSON(WithPhase(context.Background(), "verify"), "p", nil)
	if err != nil {
		t.Fatalf("GenerateJSON error: %v", err)
	}
	var report struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Status != "passed" {
		t.Fatalf("status = %q, want passed", report.Status)
	}
}
