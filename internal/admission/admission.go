// Package admission gates orders before they enter the pipeline by checking
// every subsystem of the line for liveness and, where it applies, capacity.
package admission

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/EspressoLine/internal/machine"
)

// DefaultTimeout is the probe timeout used when none is configured.
const DefaultTimeout = 101 * time.Millisecond

// Emitter receives check.failed events.
type Emitter interface {
	Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error)
}

// Result is the outcome of checking one subsystem.
type Result struct {
	Kind      machine.Kind
	Subsystem string
	Err       error
}

// OK reports whether the check passed.
func (r Result) OK() bool { return r.Err == nil }

// Report holds one result per subsystem in line order.
type Report struct {
	Size    machine.Size
	Results []Result
}

// Admitted reports whether every check passed.
func (r Report) Admitted() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the failed results in line order.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Controller runs the admission checks for a line.
type Controller struct {
	line    *machine.Line
	timeout time.Duration
	emitter Emitter
}

// New creates a controller. A zero timeout means DefaultTimeout; emitter may
// be nil.
func New(line *machine.Line, timeout time.Duration, emitter Emitter) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{line: line, timeout: timeout, emitter: emitter}
}

// Timeout returns the probe timeout.
func (c *Controller) Timeout() time.Duration { return c.timeout }

// RunChecks probes all five subsystems concurrently and returns their results
// in line order. Consumable subsystems are also checked for capacity. A
// failure never stops the other checks.
func (c *Controller) RunChecks(ctx context.Context, size machine.Size) Report {
	subs := c.line.All()
	results := make([]Result, len(subs))

	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			var sz *machine.Size
			if sub.Consumable() {
				sz = size.Ptr()
			}
			results[i] = Result{
				Kind:      sub.Kind,
				Subsystem: sub.Name,
				Err:       sub.Check(ctx, c.timeout, sz),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err == nil {
			continue
		}
		c.emit("warning", "check.failed", res.Err.Error(), map[string]interface{}{
			"subsystem": res.Subsystem,
			"kind":      machine.FailureKind(res.Err),
			"size":      size.String(),
		})
	}
	return Report{Size: size, Results: results}
}

func (c *Controller) emit(level, name, msg string, fields map[string]interface{}) {
	if c.emitter == nil {
		return
	}
	_, _ = c.emitter.Emit(level, name, msg, fields)
}
