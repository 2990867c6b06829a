package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/AaronLay10/EspressoLine/internal/config"
	"github.com/AaronLay10/EspressoLine/internal/machine"
)

// Options are the command-line settings. Flags left unset fall back to the
// environment.
type Options struct {
	ConfigPath string
	APIPort    int
	LogLevel   string
	LogDev     bool
	Size       string
	Clients    []string
	// Hold keeps the API up after the batch drains.
	Hold time.Duration

	fs *pflag.FlagSet
}

func NewOptions() *Options {
	return &Options{LogLevel: "info"}
}

// AddFlags binds the Options fields to flags on fs.
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVarP(&opts.ConfigPath, "config", "c", opts.ConfigPath,
		"Path to machine.yaml. The stock line is used when empty.")
	fs.IntVar(&opts.APIPort, "api-port", opts.APIPort,
		"Port for the HTTP API. 0 disables it.")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel,
		"Operational log level: debug, info, warn or error.")
	fs.BoolVar(&opts.LogDev, "log-dev", opts.LogDev,
		"Human-readable operational logs.")
	fs.StringVar(&opts.Size, "size", opts.Size,
		"Override the batch size: small, medium or large.")
	fs.StringSliceVar(&opts.Clients, "clients", opts.Clients,
		"Override the batch clients (comma separated).")
	fs.DurationVar(&opts.Hold, "hold", opts.Hold,
		"Keep serving the API for this long after the batch drains.")
}

// Complete fills flags that were not set on the command line from env.
func (opts *Options) Complete(env *config.Env) {
	if env == nil {
		return
	}
	if !opts.changed("config") && env.MachineFile != "" {
		opts.ConfigPath = env.MachineFile
	}
	if !opts.changed("api-port") {
		opts.APIPort = env.APIPort
	}
	if !opts.changed("log-level") && env.LogLevel != "" {
		opts.LogLevel = env.LogLevel
	}
	if !opts.changed("log-dev") {
		opts.LogDev = env.LogDev
	}
}

func (opts *Options) changed(name string) bool {
	if opts.fs == nil {
		return false
	}
	f := opts.fs.Lookup(name)
	return f != nil && f.Changed
}

// Validate checks the Options for invalid values.
func (opts *Options) Validate() error {
	if opts.APIPort < 0 || opts.APIPort > 65535 {
		return fmt.Errorf("invalid api-port %d", opts.APIPort)
	}
	if opts.Size != "" {
		if _, err := machine.ParseSize(opts.Size); err != nil {
			return err
		}
	}
	if opts.Hold < 0 {
		return fmt.Errorf("hold must not be negative")
	}
	return nil
}

// Apply writes the batch overrides into cfg.
func (opts *Options) Apply(cfg *config.MachineConfig) {
	if opts.Size != "" {
		cfg.Batch.Size = opts.Size
	}
	if len(opts.Clients) > 0 {
		cfg.Batch.Clients = opts.Clients
	}
}
