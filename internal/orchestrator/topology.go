package orchestrator

import (
	"fmt"

	"github.com/AaronLay10/EspressoLine/internal/machine"
)

// Topology declares the links of a line and the stages bound to them.
type Topology struct {
	Links   []string   `yaml:"links"`
	Entries []EntryDef `yaml:"entries"`
	Stages  []StageDef `yaml:"stages"`
}

// EntryDef is a link the orchestrator feeds admitted orders into.
type EntryDef struct {
	Link string `yaml:"link"`
	// Started and Failed are format strings taking the order id.
	Started string `yaml:"started"`
	Failed  string `yaml:"failed"`
}

// StageDef binds one subsystem to an inbound link and, for relays, an
// outbound link.
type StageDef struct {
	Name        string       `yaml:"name"`
	Subsystem   machine.Kind `yaml:"subsystem"`
	In          string       `yaml:"in"`
	Out         string       `yaml:"out,omitempty"`
	ForwardSize bool         `yaml:"forward_size,omitempty"`
	Success     string       `yaml:"success"`
}

// DefaultTopology is the two-branch espresso line: beans and water feed the
// press, milk feeds the frother.
func DefaultTopology() Topology {
	return Topology{
		Links: []string{"grind", "water", "press", "milk", "froth"},
		Entries: []EntryDef{
			{Link: "grind", Started: "Client %d Coffee Beans Started!", Failed: "Error Starting Client %d Coffee Beans!"},
			{Link: "milk", Started: "Client %d Milk Started!", Failed: "Error starting Client %d Milk!"},
		},
		Stages: []StageDef{
			{Name: "grind_coffee", Subsystem: machine.KindCoffeeHopper, In: "grind", Out: "water", ForwardSize: true, Success: "Coffee Ground for Client %d!"},
			{Name: "dispense_water", Subsystem: machine.KindWaterTank, In: "water", Out: "press", Success: "Water Dispensed for Client %d!"},
			{Name: "press_espresso", Subsystem: machine.KindEspressoPress, In: "press", Success: "Espresso Pressed for Client %d!"},
			{Name: "heat_milk", Subsystem: machine.KindMilkTank, In: "milk", Out: "froth", Success: "Milk heated for Client %d!"},
			{Name: "froth_milk", Subsystem: machine.KindFrother, In: "froth", Success: "Milk frothed for Client %d!"},
		},
	}
}

// Validate checks that every link has exactly one consuming stage and at
// least one producer, that every stage names a known subsystem, and that no
// stage can reach its own inbound link. A cycle would keep its links open and
// the run would never drain.
func (t Topology) Validate() error {
	declared := make(map[string]bool, len(t.Links))
	for _, l := range t.Links {
		if l == "" {
			return fmt.Errorf("empty link name")
		}
		if declared[l] {
			return fmt.Errorf("duplicate link: %s", l)
		}
		declared[l] = true
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("topology has no entry links")
	}

	consumers := make(map[string]string, len(t.Links))
	producers := make(map[string]int, len(t.Links))
	names := make(map[string]bool, len(t.Stages))

	for _, e := range t.Entries {
		if !declared[e.Link] {
			return fmt.Errorf("entry references unknown link: %s", e.Link)
		}
		producers[e.Link]++
	}

	for _, s := range t.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate stage: %s", s.Name)
		}
		names[s.Name] = true
		if _, err := machine.ParseKind(string(s.Subsystem)); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
		if !declared[s.In] {
			return fmt.Errorf("stage %s reads unknown link: %s", s.Name, s.In)
		}
		if prev, ok := consumers[s.In]; ok {
			return fmt.Errorf("link %s consumed by both %s and %s", s.In, prev, s.Name)
		}
		consumers[s.In] = s.Name
		if s.Out != "" {
			if !declared[s.Out] {
				return fmt.Errorf("stage %s writes unknown link: %s", s.Name, s.Out)
			}
			if s.Out == s.In {
				return fmt.Errorf("stage %s writes its own inbound link", s.Name)
			}
			producers[s.Out]++
		}
	}

	for _, l := range t.Links {
		if _, ok := consumers[l]; !ok {
			return fmt.Errorf("link %s has no consumer", l)
		}
		if producers[l] == 0 {
			return fmt.Errorf("link %s has no producer", l)
		}
	}
	return t.checkAcyclic()
}

// checkAcyclic follows each link to its consumer's outbound link. Every link
// has one consumer and every stage at most one outbound link, so the walk is
// a chain and any revisit is a cycle.
func (t Topology) checkAcyclic() error {
	next := make(map[string]string, len(t.Stages))
	consumer := make(map[string]string, len(t.Stages))
	for _, s := range t.Stages {
		consumer[s.In] = s.Name
		if s.Out != "" {
			next[s.In] = s.Out
		}
	}
	for _, start := range t.Links {
		seen := map[string]bool{start: true}
		for l := next[start]; l != ""; l = next[l] {
			if seen[l] {
				return fmt.Errorf("stage %s is part of a cycle through link %s", consumer[start], start)
			}
			seen[l] = true
		}
	}
	return nil
}
