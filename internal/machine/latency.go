package machine

import (
	"context"
	"math/rand/v2"
	"time"
)

// LatencySource yields the synthetic response time of one probe.
type LatencySource interface {
	Next() time.Duration
}

// UniformLatency draws uniformly from [Min, Max].
type UniformLatency struct {
	Min time.Duration
	Max time.Duration
}

// DefaultLatency matches the response range of the physical line: 2ms to 99ms.
func DefaultLatency() UniformLatency {
	return UniformLatency{Min: 2 * time.Millisecond, Max: 99 * time.Millisecond}
}

func (u UniformLatency) Next() time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(rand.Int64N(int64(u.Max-u.Min)+1))
}

// FixedLatency always returns the same duration. Used to make probes deterministic.
type FixedLatency time.Duration

func (f FixedLatency) Next() time.Duration { return time.Duration(f) }

// LatencyFunc adapts a function to a LatencySource.
type LatencyFunc func() time.Duration

func (f LatencyFunc) Next() time.Duration { return f() }

// sleepOrDone waits for d or returns early on context cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
