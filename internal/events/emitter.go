// Package events is the audit trail of a line run. Every admission decision,
// stage outcome and transport failure is emitted here; the bus keeps a ring
// buffer of recent events, fans them out to live subscribers, and hands each
// one synchronously to the configured sinks (console, store, telemetry).
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the number of events kept for RecentEvents.
const DefaultBufferSize = 256

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Sink receives every emitted event synchronously.
type Sink interface {
	Write(e Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e Event) error

func (f SinkFunc) Write(e Event) error { return f(e) }

type namedSink struct {
	name      string
	sink      Sink
	errLogged atomic.Bool
}

// Bus is safe for concurrent use by every stage of a run.
type Bus struct {
	buffer *RingBuffer
	total  atomic.Int64

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}

	sinkMu sync.RWMutex
	sinks  []*namedSink

	runMu sync.RWMutex
	runID string
}

// NewBus creates a bus keeping the last size events.
func NewBus(size int) *Bus {
	return &Bus{
		buffer:      NewRingBuffer(size),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// AddSink registers a sink under a name used in error reports.
func (b *Bus) AddSink(name string, s Sink) {
	b.sinkMu.Lock()
	b.sinks = append(b.sinks, &namedSink{name: name, sink: s})
	b.sinkMu.Unlock()
}

// SetRunID tags every following event with the given run id.
func (b *Bus) SetRunID(id string) {
	b.runMu.Lock()
	b.runID = id
	b.runMu.Unlock()
}

// RunID returns the current run id.
func (b *Bus) RunID() string {
	b.runMu.RLock()
	defer b.runMu.RUnlock()
	return b.runID
}

func (b *Bus) Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		RunID:     b.RunID(),
		Fields:    fields,
	}

	b.buffer.Add(e)
	b.total.Add(1)
	b.broadcast(e)

	b.sinkMu.RLock()
	sinks := append([]*namedSink(nil), b.sinks...)
	b.sinkMu.RUnlock()

	for _, s := range sinks {
		if err := s.sink.Write(e); err != nil {
			// Report once per sink, straight into the buffer so a failing
			// sink cannot recurse through Emit.
			if s.errLogged.CompareAndSwap(false, true) {
				b.buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   s.name + " sink failed",
					RunID:     e.RunID,
					Fields: map[string]interface{}{
						"sink":  s.name,
						"error": err.Error(),
					},
				})
			}
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return data, nil
}

func (b *Bus) Snapshot() []Event {
	return b.buffer.Snapshot()
}

// Clear resets the event buffer. Used for testing.
func (b *Bus) Clear() {
	b.buffer.Clear()
}

// TotalCount returns the number of events emitted since the bus was created.
func (b *Bus) TotalCount() int64 {
	return b.total.Load()
}
