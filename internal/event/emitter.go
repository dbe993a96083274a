package event

import "context"

// Type classifies a streamable run event.
type Type int

const (
	TypeUnspecified Type = iota
	TypeLog
	TypeStageStart
	TypeStageDone
	TypeComplete
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeLog:
		return "log"
	case TypeStageStart:
		return "stage_start"
	case TypeStageDone:
		return "stage_done"
	case TypeComplete:
		return "complete"
	case TypeError:
		return "error"
	}
	return "unspecified"
}

// Event is one observable step of a run.
type Event struct {
	Type     Type   `json:"type"`
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message,omitempty"`
	Sequence int    `json:"sequence,omitempty"`
	Progress int    `json:"progress,omitempty"` // 0-100
}

// Emitter receives events during a run.
type Emitter interface {
	Emit(ev Event)
}

type emitterKey struct{}

// WithEmitter attaches an emitter to the context.
func WithEmitter(ctx context.Context, e Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

// EmitterFrom retrieves the emitter from the context, or a no-op emitter.
func EmitterFrom(ctx context.Context) Emitter {
	if e, ok := ctx.Value(emitterKey{}).(Emitter); ok {
		return e
	}
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// ChannelEmitter sends events to a channel without blocking; events are
// dropped when the receiver falls behind.
type ChannelEmitter struct {
	Ch chan<- Event
}

func (e *ChannelEmitter) Emit(ev Event) {
	select {
	case e.Ch <- ev:
	default:
	}
}
