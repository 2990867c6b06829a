// Package machine models the physical components of the espresso line:
// their liveness probes, their material capacity, and the fixed set of five
// subsystems that make up one line.
package machine

import (
	"context"
	"fmt"
	"time"
)

// Kind tags a subsystem with the physical component it models.
type Kind string

const (
	KindCoffeeHopper  Kind = "coffee_hopper"
	KindWaterTank     Kind = "water_tank"
	KindEspressoPress Kind = "espresso_press"
	KindMilkTank      Kind = "milk_tank"
	KindFrother       Kind = "frother"
)

// Kinds lists the subsystems in check order.
var Kinds = []Kind{
	KindCoffeeHopper,
	KindWaterTank,
	KindEspressoPress,
	KindMilkTank,
	KindFrother,
}

// Consumable reports whether the kind holds material that an order uses up.
func (k Kind) Consumable() bool {
	switch k {
	case KindCoffeeHopper, KindWaterTank, KindMilkTank:
		return true
	default:
		return false
	}
}

// DisplayName is the component name used in console output.
func (k Kind) DisplayName() string {
	switch k {
	case KindCoffeeHopper:
		return "CoffeeHopper"
	case KindWaterTank:
		return "WaterTank"
	case KindEspressoPress:
		return "EspressoPress"
	case KindMilkTank:
		return "MilkTank"
	case KindFrother:
		return "Frother"
	default:
		return string(k)
	}
}

// Yield returns the ingredient a component adds to the cup, if any.
func (k Kind) Yield() (Ingredient, bool) {
	switch k {
	case KindEspressoPress:
		return Espresso, true
	case KindFrother:
		return Milk, true
	default:
		return "", false
	}
}

// ParseKind parses a kind from its config key.
func ParseKind(v string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown subsystem: %q", v)
}

// Subsystem is one physical component. It is read-only during a run and may be
// shared across goroutines without locking.
type Subsystem struct {
	Kind     Kind
	Name     string
	Material string
	// Level is the remaining material. It is never decremented.
	Level       float64
	Consumption map[Size]float64
	Latency     LatencySource
}

// Consumable reports whether the subsystem takes part in capacity checks.
func (s *Subsystem) Consumable() bool {
	return s.Kind.Consumable()
}

// Probe simulates a liveness check: it blocks for a drawn latency and fails if
// that latency exceeds timeout.
func (s *Subsystem) Probe(ctx context.Context, timeout time.Duration) error {
	latency := s.latency().Next()
	if err := sleepOrDone(ctx, latency); err != nil {
		return NotResponding(s.Name, err)
	}
	if latency > timeout {
		return NotResponding(s.Name, nil)
	}
	return nil
}

// CheckCapacity compares the material an order of the given size needs with
// the configured level. Non-consumable subsystems always pass.
func (s *Subsystem) CheckCapacity(size Size) error {
	if !s.Consumable() {
		return nil
	}
	need, ok := s.Consumption[size]
	if !ok {
		return InsufficientMaterial(s.Name, s.Material)
	}
	if need > s.Level {
		return InsufficientMaterial(s.Name, s.Material)
	}
	return nil
}

// Check probes the subsystem and, when a size is given, checks its capacity.
func (s *Subsystem) Check(ctx context.Context, timeout time.Duration, size *Size) error {
	if err := s.Probe(ctx, timeout); err != nil {
		return err
	}
	if size == nil {
		return nil
	}
	return s.CheckCapacity(*size)
}

func (s *Subsystem) latency() LatencySource {
	if s.Latency == nil {
		return DefaultLatency()
	}
	return s.Latency
}

// Default returns the stock configuration of a subsystem kind.
func Default(kind Kind) *Subsystem {
	s := &Subsystem{
		Kind:    kind,
		Name:    kind.DisplayName(),
		Latency: DefaultLatency(),
	}
	switch kind {
	case KindCoffeeHopper:
		s.Material = "coffee beans"
		s.Level = 2.0
		s.Consumption = map[Size]float64{Small: 1.0, Medium: 2.0, Large: 3.0}
	case KindWaterTank:
		s.Material = "water"
		s.Level = 2.0
		s.Consumption = map[Size]float64{Small: 1.0, Medium: 2.0, Large: 3.0}
	case KindMilkTank:
		s.Material = "milk"
		s.Level = 10.0
		s.Consumption = map[Size]float64{Small: 7.0, Medium: 10.0, Large: 13.0}
	}
	return s
}
