package agent

import "naturalist.ai/internal/protocol"

// Sink receives run events. Implementations must not block for long; the
// agent emits synchronously.
type Sink interface {
	Emit(ev protocol.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev protocol.Event)

func (f SinkFunc) Emit(ev protocol.Event) { f(ev) }

// Sinks fans one event out to several sinks. nil entries are skipped.
type Sinks []Sink

func (s Sinks) Emit(ev protocol.Event) {
	for _, k := range s {
		if k != nil {
			k.Emit(ev)
		}
	}
}

type discard struct{}

func (discard) Emit(protocol.Event) {}
