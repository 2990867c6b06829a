package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/AaronLay10/EspressoLine/internal/api"
	"github.com/AaronLay10/EspressoLine/internal/config"
	"github.com/AaronLay10/EspressoLine/internal/events"
	"github.com/AaronLay10/EspressoLine/internal/logging"
	"github.com/AaronLay10/EspressoLine/internal/metrics"
	"github.com/AaronLay10/EspressoLine/internal/mqtt"
	"github.com/AaronLay10/EspressoLine/internal/orchestrator"
	"github.com/AaronLay10/EspressoLine/internal/storage/postgres"
	"github.com/AaronLay10/EspressoLine/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns an error only for startup failures. Order failures are
// reported as events and never change the exit status.
func run(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	opts := NewOptions()
	fs := pflag.NewFlagSet("orchestrator", pflag.ContinueOnError)
	opts.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.Complete(env)
	if err := opts.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: opts.LogLevel, Development: opts.LogDev})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg := config.DefaultMachineConfig()
	if opts.ConfigPath != "" {
		cfg, err = config.LoadMachineConfig(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load machine config: %w", err)
		}
	}
	opts.Apply(cfg)

	line, err := cfg.BuildLine()
	if err != nil {
		return fmt.Errorf("invalid machine config: %w", err)
	}
	orders, err := cfg.Orders()
	if err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(events.DefaultBufferSize)
	bus.AddSink("console", events.NewConsoleSink(os.Stdout))
	bus.AddSink("log", logging.EventSink(logger))
	m := metrics.New()
	bus.AddSink("metrics", m)

	var history api.History
	if env.PGEnabled {
		pg, err := postgres.New(ctx, postgres.Options{
			Host:     env.PGHost,
			Port:     env.PGPort,
			User:     env.PGUser,
			Password: env.PGPassword,
			DBName:   env.PGDB,
			SSLMode:  env.PGSSLMode,
			LineID:   cfg.Line.ID,
		})
		if err != nil {
			logger.Warn("event store unavailable", zap.Error(err))
		} else {
			defer pg.Close()
			bus.AddSink("postgres", events.StoreSink(pg))
			history = pg
		}
	}

	if env.MQTTEnabled {
		client := mqtt.NewClient(mqtt.Options{
			BrokerURL: env.MQTTURL,
			ClientID:  env.MQTTClientID + "-" + cfg.Line.ID,
			Username:  env.MQTTUsername,
			Password:  env.MQTTPassword,
		})
		if connectTelemetry(client, logger) {
			defer client.Disconnect()
			bus.AddSink("mqtt", mqtt.NewPublisher(client, cfg.Line.ID))
		}
	}

	rt, err := orchestrator.NewRuntime(orchestrator.Options{
		Line:     line,
		Topology: cfg.Pipeline,
		Timeout:  cfg.ProbeTimeout(),
		Bus:      bus,
	})
	if err != nil {
		return err
	}

	if opts.APIPort > 0 {
		srv := api.NewServer(api.Options{
			Bus:     bus,
			Status:  rt,
			Metrics: m.Handler(),
			History: history,
			Auth:    api.Credentials{User: env.APIUser, Pass: env.APIPassword},
			Logger:  logger,
		})
		httpSrv := srv.Start(":" + strconv.Itoa(opts.APIPort))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	hostname, _ := os.Hostname()
	bus.Emit("info", "system.startup", "", map[string]interface{}{
		"service":  version.Service,
		"version":  version.Version,
		"hostname": hostname,
		"line_id":  cfg.Line.ID,
		"pid":      os.Getpid(),
	})

	summary, err := rt.Run(ctx, orders)
	if err != nil {
		return err
	}
	logger.Info("batch finished",
		zap.String("run_id", summary.RunID),
		zap.Ints("admitted", summary.Admitted),
		zap.Ints("rejected", summary.Rejected),
	)

	if opts.Hold > 0 && opts.APIPort > 0 {
		logger.Info("holding api open", zap.Duration("hold", opts.Hold))
		select {
		case <-ctx.Done():
		case <-time.After(opts.Hold):
		}
	}

	bus.Emit("info", "system.shutdown", "", map[string]interface{}{"run_id": summary.RunID})
	bus.CloseAllSubscribers()
	return nil
}

type telemetryConn interface {
	Connect() error
	Disconnect()
	Broker() string
}

// connectTelemetry reports whether the broker is usable. A failed connect is
// disconnected so paho stops retrying in the background.
func connectTelemetry(c telemetryConn, logger *logging.Logger) bool {
	if err := c.Connect(); err != nil {
		logger.Warn("mqtt unavailable", zap.String("broker", c.Broker()), zap.Error(err))
		c.Disconnect()
		return false
	}
	return true
}
