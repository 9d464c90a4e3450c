package analytics

import (
	"context"
	"log/slog"
)

// queueCapacity bounds the Emitter's async buffer. A full queue means
// events are dropped with a log line rather than blocking the request
// path — analytics emission is one of the two places a log-and-continue
// failure mode is permitted (the other is cache errors).
const queueCapacity = 256

// Emitter records Events off the request path: Emit enqueues and returns
// immediately; a single background worker drains the queue into Sink.
type Emitter struct {
	sink   Sink
	events chan Event
	done   chan struct{}
	logger *slog.Logger
}

// NewEmitter constructs an Emitter and starts its background worker.
// Callers must call Close on shutdown to drain and stop the worker.
func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		sink:   sink,
		events: make(chan Event, queueCapacity),
		done:   make(chan struct{}),
		logger: logger,
	}
	go e.run()
	return e
}

// Emit enqueues event for asynchronous recording. It never blocks: a full
// queue drops the event with a warning log (§7 "log-and-continue is
// permitted ... for ... analytics emission").
func (e *Emitter) Emit(event Event) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("analytics queue full, dropping event", "session_id", event.SessionID, "outcome", event.Outcome)
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.events {
		e.sink.Record(context.Background(), event)
	}
}

// Close stops accepting new events and waits for the queue to drain.
func (e *Emitter) Close() {
	close(e.events)
	<-e.done
}
