/*
Package telemetry delivers the engine's outbound event records.

PURPOSE:
  The engine only produces []workforce.Event. This package moves them
  somewhere: a compressed JSONL log on disk, live websocket subscribers,
  Prometheus gauges and counters, or an in-memory buffer.

KEY CONCEPTS:
  Sink:     anything that accepts a tick's events
  Fanout:   publishes to several sinks, collecting every error
  Buffer:   bounded in-memory ring of recent events
  JSONLWriter / Hub / Collector: see jsonl.go, hub.go, metrics.go

DELIVERY:
  Sinks see events in the order the engine produced them. Telemetry is
  advisory: a failing sink never rolls back a committed tick, the caller
  logs the error and moves on.

SEE ALSO:
  - workforce/events.go: Topics and payload types
  - api/scheduler.go: Publishes after every committed tick
*/
package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/workforce-engine/workforce"
)

// Sink receives the events of one committed tick.
type Sink interface {
	Publish(ctx context.Context, events []workforce.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []workforce.Event) error

func (f SinkFunc) Publish(ctx context.Context, events []workforce.Event) error {
	return f(ctx, events)
}

// =============================================================================
// FANOUT
// =============================================================================

// Fanout publishes to every sink in order. One failing sink does not stop
// the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends a sink. Nil sinks are ignored.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

func (f *Fanout) Publish(ctx context.Context, events []workforce.Event) error {
	if len(events) == 0 {
		return nil
	}
	f.mu.RLock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// BUFFER
// =============================================================================

// Buffer keeps the most recent events in memory.
type Buffer struct {
	mu     sync.RWMutex
	max    int
	events []workforce.Event
}

// NewBuffer keeps at most max events. max <= 0 means unbounded.
func NewBuffer(max int) *Buffer {
	return &Buffer{max: max}
}

func (b *Buffer) Publish(_ context.Context, events []workforce.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	if b.max > 0 && len(b.events) > b.max {
		b.events = append([]workforce.Event(nil), b.events[len(b.events)-b.max:]...)
	}
	return nil
}

// Since returns buffered events with Tick >= fromTick, optionally filtered
// by topic.
func (b *Buffer) Since(fromTick int64, topic string) []workforce.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []workforce.Event
	for _, ev := range b.events {
		if ev.Tick < fromTick {
			continue
		}
		if topic != "" && ev.Topic != topic {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

var (
	_ Sink = (*Fanout)(nil)
	_ Sink = (*Buffer)(nil)
	_ Sink = SinkFunc(nil)
)
