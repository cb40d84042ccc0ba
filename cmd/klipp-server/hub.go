package main

import (
	"sync"

	"github.com/klippmedia/klipp-engine/engine"
	"github.com/klippmedia/klipp-engine/project"
)

// WireEvent is the SSE payload: the event name plus a JSON-friendly body.
// Preview frame pixels never go over the wire, only their geometry.
type WireEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type previewFrameInfo struct {
	PositionTL int64  `json:"position_tl"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	Format     string `json:"format"`
}

type errorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func toWireEvent(event engine.Event) WireEvent {
	switch e := event.(type) {
	case engine.ProjectChanged:
		return WireEvent{Type: "project_changed", Data: e}
	case engine.PlayheadChanged:
		return WireEvent{Type: "playhead_changed", Data: e}
	case engine.PreviewFrameReady:
		return WireEvent{Type: "preview_frame_ready", Data: previewFrameInfo{
			PositionTL: e.PositionTL,
			Width:      e.Frame.Width,
			Height:     e.Frame.Height,
			Format:     e.Frame.Format.Value,
		}}
	case engine.ExportProgress:
		return WireEvent{Type: "export_progress", Data: e}
	case engine.ExportFinished:
		return WireEvent{Type: "export_finished", Data: e}
	case engine.ProjectSaved:
		return WireEvent{Type: "project_saved", Data: e}
	case engine.ErrorEvent:
		return WireEvent{Type: "error", Data: errorInfo{Kind: e.Kind.Value, Message: e.Message}}
	default:
		return WireEvent{Type: "unknown"}
	}
}

// EventHub fans worker events out to SSE subscribers and remembers the last
// project snapshot so HTTP reads never touch the engine goroutine.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan WireEvent]struct{}
	snapshot    *project.ProjectSnapshot
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[chan WireEvent]struct{})}
}

// Pump consumes engine events until the channel closes. Slow subscribers
// lose events rather than stalling the worker.
func (h *EventHub) Pump(events <-chan engine.Event) {
	for event := range events {
		if changed, ok := event.(engine.ProjectChanged); ok {
			h.mu.Lock()
			snapshot := changed.Snapshot
			h.snapshot = &snapshot
			h.mu.Unlock()
		}

		wire := toWireEvent(event)
		h.mu.Lock()
		for subscriber := range h.subscribers {
			select {
			case subscriber <- wire:
			default:
			}
		}
		h.mu.Unlock()
	}
}

func (h *EventHub) Subscribe() chan WireEvent {
	ch := make(chan WireEvent, 64)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan WireEvent) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
}

func (h *EventHub) LatestSnapshot() *project.ProjectSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}
