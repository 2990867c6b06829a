// Package orchestrator builds the stage pipeline for a line, gates a batch of
// orders through admission, feeds the admitted ones into the entry links and
// waits for every stage to drain.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/EspressoLine/internal/admission"
	"github.com/AaronLay10/EspressoLine/internal/events"
	"github.com/AaronLay10/EspressoLine/internal/machine"
	"github.com/AaronLay10/EspressoLine/internal/pipeline"
)

// SlowStartThreshold is the probe timeout below which an order start is
// reported as at risk of timing out.
const SlowStartThreshold = 50 * time.Millisecond

// Options configures a Runtime.
type Options struct {
	Line     *machine.Line
	Topology *Topology
	// Timeout bounds each probe. Zero means admission.DefaultTimeout.
	Timeout time.Duration
	Bus     *events.Bus
}

// Runtime runs batches of orders through one line.
type Runtime struct {
	line     *machine.Line
	topology Topology
	timeout  time.Duration
	bus      *events.Bus
	gate     *admission.Controller

	mu     sync.Mutex
	stages []*pipeline.Stage
}

// NewRuntime validates the topology and returns a runtime for the line.
func NewRuntime(opts Options) (*Runtime, error) {
	if opts.Line == nil {
		return nil, fmt.Errorf("line is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	topo := DefaultTopology()
	if opts.Topology != nil {
		topo = *opts.Topology
	}
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	gate := admission.New(opts.Line, opts.Timeout, opts.Bus)
	return &Runtime{
		line:     opts.Line,
		topology: topo,
		timeout:  gate.Timeout(),
		bus:      opts.Bus,
		gate:     gate,
	}, nil
}

type linkEnds struct {
	tx      *pipeline.Sender
	rx      *pipeline.Receiver
	claimed bool
}

// producer hands out the link's first sender, then clones.
func (l *linkEnds) producer() *pipeline.Sender {
	if !l.claimed {
		l.claimed = true
		return l.tx
	}
	return l.tx.Clone()
}

// Run executes one batch. It returns after every stage has drained. Order
// failures are reported as events, never as an error.
func (r *Runtime) Run(ctx context.Context, orders []machine.Order) (Summary, error) {
	runID := uuid.NewString()
	r.bus.SetRunID(runID)
	summary := Summary{RunID: runID}

	links := make(map[string]*linkEnds, len(r.topology.Links))
	for _, name := range r.topology.Links {
		tx, rx := pipeline.NewLink(name)
		links[name] = &linkEnds{tx: tx, rx: rx}
	}

	entries := make([]*pipeline.Sender, len(r.topology.Entries))
	for i, e := range r.topology.Entries {
		entries[i] = links[e.Link].producer()
	}

	var barrier pipeline.Barrier
	stages := make([]*pipeline.Stage, 0, len(r.topology.Stages))
	for _, def := range r.topology.Stages {
		st := &pipeline.Stage{
			Name:        def.Name,
			Subsystem:   r.line.Get(def.Subsystem),
			In:          links[def.In].rx,
			ForwardSize: def.ForwardSize,
			Success:     def.Success,
			Timeout:     r.timeout,
			Emitter:     r.bus,
		}
		if def.Out != "" {
			st.Out = links[def.Out].producer()
		}
		stages = append(stages, st)
	}

	r.mu.Lock()
	r.stages = stages
	r.mu.Unlock()

	r.emit("info", "pipeline.started", "", map[string]interface{}{
		"orders": len(orders),
		"stages": len(stages),
	})
	for _, st := range stages {
		h := barrier.Register()
		go st.Run(ctx, h)
	}

	for _, o := range orders {
		if r.timeout < SlowStartThreshold {
			r.emit("warning", "order.slow_start", fmt.Sprintf("Client %d Start Coffee Timeout!", o.ID), map[string]interface{}{
				"order_id":   o.ID,
				"timeout_ms": r.timeout.Milliseconds(),
			})
		}

		report := r.gate.RunChecks(ctx, o.Size)
		if !report.Admitted() {
			summary.Rejected = append(summary.Rejected, o.ID)
			r.emit("warning", "order.rejected", fmt.Sprintf("Cannot make %s's Coffee!", o.Client), map[string]interface{}{
				"order_id": o.ID,
				"client":   o.Client,
				"failures": len(report.Failures()),
			})
			continue
		}

		summary.Admitted = append(summary.Admitted, o.ID)
		r.emit("info", "order.admitted", "", map[string]interface{}{
			"order_id": o.ID,
			"client":   o.Client,
			"size":     o.Size.String(),
		})
		r.enqueue(o, entries)
	}

	for _, tx := range entries {
		tx.Close()
	}
	barrier.Wait()

	r.emit("info", "pipeline.drained", "", map[string]interface{}{
		"admitted": len(summary.Admitted),
		"rejected": len(summary.Rejected),
	})
	return summary, nil
}

func (r *Runtime) enqueue(o machine.Order, entries []*pipeline.Sender) {
	for i, tx := range entries {
		entry := r.topology.Entries[i]
		err := tx.Send(pipeline.Message{OrderID: o.ID, Client: o.Client, Size: o.Size.Ptr()})
		if err != nil {
			r.emit("error", "transport.failed", fmt.Sprintf(entry.Failed, o.ID)+"\n"+err.Error(), map[string]interface{}{
				"order_id": o.ID,
				"link":     entry.Link,
			})
			continue
		}
		r.emit("info", "order.enqueued", fmt.Sprintf(entry.Started, o.ID), map[string]interface{}{
			"order_id": o.ID,
			"link":     entry.Link,
		})
	}
}

// Stages returns the status of the stages of the current or last run.
func (r *Runtime) Stages() []StageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StageStatus, 0, len(r.stages))
	for _, st := range r.stages {
		out = append(out, StageStatus{
			Name:      st.Name,
			Subsystem: st.Subsystem.Name,
			State:     st.State().String(),
			Processed: st.Processed(),
			Dropped:   st.Dropped(),
		})
	}
	return out
}

// Topology returns the topology the runtime was built with.
func (r *Runtime) Topology() Topology { return r.topology }

func (r *Runtime) emit(level, name, msg string, fields map[string]interface{}) {
	_, _ = r.bus.Emit(level, name, msg, fields)
}
