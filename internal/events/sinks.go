package events

import (
	"io"
	"sync"
	"time"
)

// ConsoleSink prints the human-readable message of each event, one per line.
// Events without a message are skipped.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Write(e Event) error {
	if e.Message == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, e.Message+"\n")
	return err
}

// Store persists events. The Postgres client implements it.
type Store interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error
}

// StoreSink adapts a Store to a Sink.
func StoreSink(s Store) Sink {
	return SinkFunc(func(e Event) error {
		ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		return s.Append(ts, e.Level, e.Name, e.Message, e.Fields, e.RunID)
	})
}
