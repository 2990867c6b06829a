package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/EspressoLine/internal/machine"
)

// Emitter receives the events a stage reports. *events.Bus satisfies it.
type Emitter interface {
	Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error)
}

// State is the lifecycle position of a stage worker.
type State int32

const (
	Running State = iota
	Processing
	Forwarding
	Drained
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Processing:
		return "processing"
	case Forwarding:
		return "forwarding"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// Stage is one pipeline step bound to a single subsystem. A stage with an Out
// sender is a relay; without one it is a sink.
type Stage struct {
	Name      string
	Subsystem *machine.Subsystem
	In        *Receiver
	Out       *Sender
	// ForwardSize passes the order size on so the next stage re-checks capacity.
	ForwardSize bool
	// Success is a format string taking the order id.
	Success string
	Timeout time.Duration
	Emitter Emitter

	state     atomic.Int32
	processed atomic.Int64
	dropped   atomic.Int64
}

// State returns the current lifecycle state.
func (s *Stage) State() State {
	return State(s.state.Load())
}

// Processed returns how many orders the stage completed.
func (s *Stage) Processed() int64 { return s.processed.Load() }

// Dropped returns how many orders the stage failed to complete or forward.
func (s *Stage) Dropped() int64 { return s.dropped.Load() }

// Relay reports whether the stage forwards to a next stage.
func (s *Stage) Relay() bool { return s.Out != nil }

// Run consumes the inbound link until it closes, then closes the outbound
// link and releases h. A panic inside the loop is recovered and reported; the
// stage still drains.
func (s *Stage) Run(ctx context.Context, h *Handle) {
	defer h.Release()
	defer s.closeOut()
	defer func() {
		if r := recover(); r != nil {
			lost := s.In.Drop()
			s.state.Store(int32(Drained))
			s.emit("error", "stage.crashed", fmt.Sprintf("%s stage crashed: %v", s.Name, r), map[string]interface{}{
				"discarded": lost,
			})
		}
	}()

	s.state.Store(int32(Running))
	s.emit("info", "stage.started", "", nil)

	for {
		msg, ok := s.In.Recv()
		if !ok {
			break
		}
		s.handle(ctx, msg)
		s.state.Store(int32(Running))
	}

	s.state.Store(int32(Drained))
	s.emit("info", "stage.drained", "", map[string]interface{}{
		"processed": s.processed.Load(),
		"dropped":   s.dropped.Load(),
	})
}

func (s *Stage) handle(ctx context.Context, msg Message) {
	s.state.Store(int32(Processing))

	if err := s.Subsystem.Check(ctx, s.Timeout, msg.Size); err != nil {
		s.dropped.Add(1)
		s.emit("warning", "order.dropped", err.Error(), map[string]interface{}{
			"order_id": msg.OrderID,
			"client":   msg.Client,
			"kind":     machine.FailureKind(err),
		})
		return
	}

	fields := map[string]interface{}{
		"order_id": msg.OrderID,
		"client":   msg.Client,
	}
	if ing, ok := s.Subsystem.Kind.Yield(); ok {
		fields["ingredient"] = string(ing)
	}

	if s.Out != nil {
		s.state.Store(int32(Forwarding))
		next := Message{OrderID: msg.OrderID, Client: msg.Client}
		if s.ForwardSize {
			next.Size = msg.Size
		}
		if err := s.Out.Send(next); err != nil {
			s.dropped.Add(1)
			s.emit("error", "transport.failed", err.Error(), map[string]interface{}{
				"order_id": msg.OrderID,
				"link":     s.Out.Name(),
			})
			return
		}
	}

	s.processed.Add(1)
	s.emit("info", "stage.completed", fmt.Sprintf(s.Success, msg.OrderID), fields)
}

func (s *Stage) closeOut() {
	if s.Out != nil {
		s.Out.Close()
	}
}

func (s *Stage) emit(level, name, msg string, fields map[string]interface{}) {
	if s.Emitter == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["stage"] = s.Name
	fields["subsystem"] = s.Subsystem.Name
	_, _ = s.Emitter.Emit(level, name, msg, fields)
}
