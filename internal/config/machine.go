// Package config loads the machine description of a line from YAML and the
// process settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/EspressoLine/internal/admission"
	"github.com/AaronLay10/EspressoLine/internal/machine"
	"github.com/AaronLay10/EspressoLine/internal/orchestrator"
)

// MachineConfig is the contents of a machine.yaml file.
type MachineConfig struct {
	Version int `yaml:"version"`
	Line    struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"line"`
	Probe struct {
		TimeoutMS    int `yaml:"timeout_ms"`
		MinLatencyMS int `yaml:"min_latency_ms"`
		MaxLatencyMS int `yaml:"max_latency_ms"`
	} `yaml:"probe"`
	Subsystems map[string]SubsystemConfig `yaml:"subsystems"`
	Batch      BatchConfig                `yaml:"batch"`
	Pipeline   *orchestrator.Topology     `yaml:"pipeline,omitempty"`
}

// SubsystemConfig overrides the stock settings of one subsystem. Consumption
// is keyed by size name.
type SubsystemConfig struct {
	Name        string             `yaml:"name,omitempty"`
	Material    string             `yaml:"material,omitempty"`
	Level       *float64           `yaml:"level,omitempty"`
	Consumption map[string]float64 `yaml:"consumption,omitempty"`
}

type BatchConfig struct {
	Size    string   `yaml:"size"`
	Clients []string `yaml:"clients"`
}

// DefaultClients is the stock batch.
var DefaultClients = []string{"Josh", "Sharon", "Moobly", "Tosh", "Mary"}

// DefaultMachineConfig returns the configuration of the stock line.
func DefaultMachineConfig() *MachineConfig {
	cfg := &MachineConfig{Version: 1}
	cfg.Line.ID = "line-1"
	cfg.Line.Name = "Espresso Line"
	cfg.Probe.TimeoutMS = int(admission.DefaultTimeout / time.Millisecond)
	cfg.Batch = BatchConfig{Size: "medium", Clients: append([]string(nil), DefaultClients...)}
	return cfg
}

func LoadMachineConfig(path string) (*MachineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg MachineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported machine.yaml version: %d", cfg.Version)
	}
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

func (c *MachineConfig) fillDefaults() {
	def := DefaultMachineConfig()
	if c.Line.ID == "" {
		c.Line.ID = def.Line.ID
	}
	if c.Line.Name == "" {
		c.Line.Name = def.Line.Name
	}
	if c.Batch.Size == "" {
		c.Batch.Size = def.Batch.Size
	}
	if c.Batch.Clients == nil {
		c.Batch.Clients = def.Batch.Clients
	}
}

func (c *MachineConfig) validate() error {
	if c.Probe.TimeoutMS < 0 {
		return fmt.Errorf("probe timeout must not be negative")
	}
	if c.Probe.MinLatencyMS < 0 || c.Probe.MaxLatencyMS < c.Probe.MinLatencyMS {
		return fmt.Errorf("invalid probe latency range [%d, %d]", c.Probe.MinLatencyMS, c.Probe.MaxLatencyMS)
	}
	for key, sc := range c.Subsystems {
		if _, err := machine.ParseKind(key); err != nil {
			return err
		}
		if sc.Level != nil && *sc.Level < 0 {
			return fmt.Errorf("%s: level must not be negative", key)
		}
		for size, v := range sc.Consumption {
			if _, err := machine.ParseSize(size); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if v < 0 {
				return fmt.Errorf("%s: consumption for %s must not be negative", key, size)
			}
		}
	}
	if _, err := machine.ParseSize(c.batchSize()); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if c.Pipeline != nil {
		if err := c.Pipeline.Validate(); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
	}
	return nil
}

// ProbeTimeout returns the configured probe timeout, defaulting to 101ms.
func (c *MachineConfig) ProbeTimeout() time.Duration {
	if c.Probe.TimeoutMS == 0 {
		return admission.DefaultTimeout
	}
	return time.Duration(c.Probe.TimeoutMS) * time.Millisecond
}

// Latency returns the probe latency source. An unset range keeps the stock
// 2ms to 99ms.
func (c *MachineConfig) Latency() machine.LatencySource {
	if c.Probe.MinLatencyMS == 0 && c.Probe.MaxLatencyMS == 0 {
		return machine.DefaultLatency()
	}
	return machine.UniformLatency{
		Min: time.Duration(c.Probe.MinLatencyMS) * time.Millisecond,
		Max: time.Duration(c.Probe.MaxLatencyMS) * time.Millisecond,
	}
}

// BuildLine builds the five subsystems, applying overrides on top of the stock
// settings.
func (c *MachineConfig) BuildLine() (*machine.Line, error) {
	latency := c.Latency()
	subs := make([]*machine.Subsystem, 0, len(machine.Kinds))
	for _, k := range machine.Kinds {
		s := machine.Default(k)
		s.Latency = latency
		if sc, ok := c.Subsystems[string(k)]; ok {
			if err := sc.apply(s); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
		subs = append(subs, s)
	}
	return machine.NewLine(subs...)
}

func (sc SubsystemConfig) apply(s *machine.Subsystem) error {
	if sc.Name != "" {
		s.Name = sc.Name
	}
	if sc.Material != "" {
		s.Material = sc.Material
	}
	if sc.Level != nil {
		s.Level = *sc.Level
	}
	if len(sc.Consumption) > 0 {
		if !s.Consumable() {
			return fmt.Errorf("consumption set on a non-consumable subsystem")
		}
		table := make(map[machine.Size]float64, len(s.Consumption))
		for size, v := range s.Consumption {
			table[size] = v
		}
		for name, v := range sc.Consumption {
			size, err := machine.ParseSize(name)
			if err != nil {
				return err
			}
			table[size] = v
		}
		s.Consumption = table
	}
	return nil
}

func (c *MachineConfig) batchSize() string {
	if c.Batch.Size == "" {
		return "medium"
	}
	return c.Batch.Size
}

// Orders returns the configured batch with sequential ids.
func (c *MachineConfig) Orders() ([]machine.Order, error) {
	size, err := machine.ParseSize(c.batchSize())
	if err != nil {
		return nil, err
	}
	return machine.Batch(size, c.Batch.Clients...), nil
}
