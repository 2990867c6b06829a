package machine

import (
	"fmt"
)

// Line is the fixed set of five subsystems of one espresso line.
type Line struct {
	subsystems map[Kind]*Subsystem
}

// NewLine builds a line. Every kind must be present exactly once.
func NewLine(subsystems ...*Subsystem) (*Line, error) {
	l := &Line{subsystems: make(map[Kind]*Subsystem, len(Kinds))}
	for _, s := range subsystems {
		if s == nil {
			return nil, fmt.Errorf("nil subsystem")
		}
		if _, err := ParseKind(string(s.Kind)); err != nil {
			return nil, err
		}
		if _, dup := l.subsystems[s.Kind]; dup {
			return nil, fmt.Errorf("duplicate subsystem: %s", s.Kind)
		}
		if s.Name == "" {
			s.Name = s.Kind.DisplayName()
		}
		l.subsystems[s.Kind] = s
	}
	for _, k := range Kinds {
		if _, ok := l.subsystems[k]; !ok {
			return nil, fmt.Errorf("missing subsystem: %s", k)
		}
	}
	return l, nil
}

// DefaultLine returns a line with every subsystem at its stock configuration.
func DefaultLine() *Line {
	subs := make([]*Subsystem, 0, len(Kinds))
	for _, k := range Kinds {
		subs = append(subs, Default(k))
	}
	l, _ := NewLine(subs...)
	return l
}

// Get returns the subsystem of the given kind.
func (l *Line) Get(k Kind) *Subsystem {
	return l.subsystems[k]
}

// All returns the subsystems in check order.
func (l *Line) All() []*Subsystem {
	out := make([]*Subsystem, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, l.subsystems[k])
	}
	return out
}

// SetLatency replaces the latency source of every subsystem.
func (l *Line) SetLatency(src LatencySource) {
	for _, s := range l.subsystems {
		s.Latency = src
	}
}

// Order is one entry of a batch.
type Order struct {
	ID     int
	Client string
	Size   Size
}

// Batch builds orders with sequential ids for the given clients.
func Batch(size Size, clients ...string) []Order {
	orders := make([]Order, 0, len(clients))
	for i, c := range clients {
		orders = append(orders, Order{ID: i, Client: c, Size: size})
	}
	return orders
}
