package event

import (
	"context"
	"testing"
)

func TestTypeString(t *testing.T) {
	cases := map[Type]string{
		TypeUnspecified: "unspecified",
		TypeLog:         "log",
		TypeStageStart:  "stage_start",
		TypeStageDone:   "stage_done",
		TypeComplete:    "complete",
		TypeError:       "error",
		Type(99):        "unspecified",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Fatalf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestEmitterFrom_DefaultsToNoop(t *testing.T) {
	e := EmitterFrom(context.Background())
	// Must not panic.
	e.Emit(Event{Type: TypeLog, Message: "hello"})
}

func TestChannelEmitter_DropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	e := &ChannelEmitter{Ch: ch}

	e.Emit(Event{Type: TypeLog, Message: "first"})
	e.Emit(Event{Type: TypeLog, Message: "dropped"}) // must not block

	if got := <-ch; got.Message != "first" {
		t.Fatalf("message = %q, want first", got.Message)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestContextRoundTrip(t *testing.T) {
	ch := make(chan Event, 1)
	e := &ChannelEmitter{Ch: ch}
	ctx := WithEmitter(context.Background(), e)

	EmitterFrom(ctx).Emit(Event{Type: TypeStageStart, Stage: "plan"})
	if got := <-ch; got.Stage != "plan" {
		t.Fatalf("stage = %q, want plan", got.Stage)
	}
}
