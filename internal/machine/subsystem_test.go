package machine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCapacity(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds {
		for _, size := range Sizes {
			kind, size := kind, size
			t.Run(fmt.Sprintf("%s/%s", kind, size), func(t *testing.T) {
				t.Parallel()

				s := Default(kind)
				err := s.CheckCapacity(size)

				if !kind.Consumable() || s.Consumption[size] <= s.Level {
					assert.NoError(t, err)
					return
				}

				require.Error(t, err)
				var f *Failure
				require.True(t, errors.As(err, &f))
				assert.Equal(t, Capacity, f.Type)
				assert.Equal(t, s.Name, f.Subsystem)
				assert.ErrorIs(t, err, ErrInsufficientMaterial)
			})
		}
	}
}

func TestCheckCapacityMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{kind: KindCoffeeHopper, want: "Not enough coffee beans in CoffeeHopper"},
		{kind: KindWaterTank, want: "Not enough water in WaterTank"},
		{kind: KindMilkTank, want: "Not enough milk in MilkTank"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			err := Default(tt.kind).CheckCapacity(Large)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestCheckCapacityUsesConfiguredLevel(t *testing.T) {
	t.Parallel()

	s := Default(KindMilkTank)
	s.Level = 5

	assert.Error(t, s.CheckCapacity(Small))

	s.Level = 13
	assert.NoError(t, s.CheckCapacity(Large))
	// Level is constant: repeated checks see the same supply.
	assert.NoError(t, s.CheckCapacity(Large))
	assert.Equal(t, 13.0, s.Level)
}

func TestProbeNeverFailsAtOrAboveMaxLatency(t *testing.T) {
	t.Parallel()

	src := UniformLatency{Min: 0, Max: 500 * time.Microsecond}
	s := Default(KindFrother)
	s.Latency = src

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Probe(context.Background(), src.Max))
	}
}

func TestProbeTimeout(t *testing.T) {
	t.Parallel()

	s := Default(KindEspressoPress)
	s.Latency = FixedLatency(2 * time.Millisecond)

	err := s.Probe(context.Background(), time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, "EspressoPress Not Responding", err.Error())
	assert.ErrorIs(t, err, ErrNotResponding)
	assert.Equal(t, "not_responding", FailureKind(err))

	assert.NoError(t, s.Probe(context.Background(), 2*time.Millisecond))
}

func TestProbeContextCanceled(t *testing.T) {
	t.Parallel()

	s := Default(KindWaterTank)
	s.Latency = FixedLatency(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Probe(ctx, 2*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotResponding)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckSkipsCapacityWithoutSize(t *testing.T) {
	t.Parallel()

	s := Default(KindCoffeeHopper)
	s.Latency = FixedLatency(0)
	s.Level = 0

	assert.NoError(t, s.Check(context.Background(), time.Millisecond, nil))
	assert.Error(t, s.Check(context.Background(), time.Millisecond, Medium.Ptr()))
}

func TestUniformLatencyRange(t *testing.T) {
	t.Parallel()

	u := DefaultLatency()
	for i := 0; i < 1000; i++ {
		d := u.Next()
		require.GreaterOrEqual(t, d, u.Min)
		require.LessOrEqual(t, d, u.Max)
	}

	assert.Equal(t, 3*time.Millisecond, UniformLatency{Min: 3 * time.Millisecond}.Next())
}

func TestFailureKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "liveness", err: NotResponding("Frother", nil), want: "not_responding"},
		{name: "capacity", err: InsufficientMaterial("MilkTank", "milk"), want: "insufficient_material"},
		{name: "transport", err: TransportFailure("water", errors.New("gone")), want: "transport"},
		{name: "wrapped", err: fmt.Errorf("stage: %w", InsufficientMaterial("MilkTank", "milk")), want: "insufficient_material"},
		{name: "plain", err: errors.New("boom"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FailureKind(tt.err))
		})
	}
}
