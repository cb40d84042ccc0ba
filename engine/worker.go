package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Worker runs one engine on a single goroutine behind bounded queues. At most
// one command is in flight; its events are forwarded in order before the next
// command starts. Engine errors become ErrorEvent on the event stream, they
// never stop the worker.
type Worker struct {
	engine   *Engine
	log      zerolog.Logger
	commands chan Command
	events   chan Event
}

func NewWorker(e *Engine, commandQueueSize, eventQueueSize int, log zerolog.Logger) *Worker {
	if commandQueueSize < 1 {
		commandQueueSize = 1
	}
	if eventQueueSize < 1 {
		eventQueueSize = 1
	}
	return &Worker{
		engine:   e,
		log:      log,
		commands: make(chan Command, commandQueueSize),
		events:   make(chan Event, eventQueueSize),
	}
}

// Commands is the submission side. Closing it stops Run after the queue
// drains.
func (w *Worker) Commands() chan<- Command {
	return w.commands
}

// Events delivers engine events in emission order. Closed when Run returns.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Run processes commands until the command channel closes or the context is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case command, ok := <-w.commands:
			if !ok {
				return
			}
			events, err := w.engine.HandleCommand(ctx, command)
			if err != nil {
				w.log.Warn().Err(err).Msgf("command %T failed", command)
				if !w.emit(ctx, ErrorEventFor(err)) {
					return
				}
				continue
			}
			for _, event := range events {
				if !w.emit(ctx, event) {
					return
				}
			}
		}
	}
}

func (w *Worker) emit(ctx context.Context, event Event) bool {
	select {
	case <-ctx.Done():
		return false
	case w.events <- event:
		return true
	}
}
