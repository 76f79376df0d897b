package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"codeberg.org/frostwatch/freezerctl/internal/alert"
	"codeberg.org/frostwatch/freezerctl/internal/config"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"codeberg.org/frostwatch/freezerctl/internal/monitor"
	"codeberg.org/frostwatch/freezerctl/internal/pid"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
	"codeberg.org/frostwatch/freezerctl/internal/sink"
	"codeberg.org/frostwatch/freezerctl/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	var bus i2c.BusCloser
	var sources []sensor.Source
	if cfg.Simulate {
		logger.Info().Msg("Simulation mode, no hardware access")
		sources = []sensor.Source{sensor.NewSimulated("freezer")}
	} else {
		if _, err := host.Init(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize host drivers")
		}

		bus, err = i2creg.Open(cfg.Bus.Name)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open I2C bus")
		}
		defer bus.Close()

		mux := sensor.NewMux(bus, cfg.Bus.MuxAddr)
		sources, err = sensor.Build(bus, mux, cfg.Sensors)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to find sensors")
		}
	}
	for _, src := range sources {
		logger.Info().Str("source", src.Name()).Msg("Detected sensor")
	}

	sinks, err := buildSinks(cfg, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize sinks")
	}
	defer closeSinks(sinks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	loop := monitor.New(cfg, sources, sinks)
	if err := loop.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in monitor loop")
	}

	logger.Info().Msg("Exiting...")
}

func buildSinks(cfg *config.Config, bus i2c.Bus) ([]sink.Sink, error) {
	var sinks []sink.Sink

	if cfg.Display.Enabled && bus != nil {
		d, err := sink.NewDisplay(bus, cfg.Display.Width, cfg.Display.Height)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
	}

	if cfg.Log.Enabled {
		l, err := sink.NewCSVLog(cfg.Log.Dir, cfg.Log.BackupDays)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, l)
	}

	if cfg.Plot.Enabled {
		p, err := sink.NewPlot(cfg.Plot.Path, cfg.Plot.Window, cfg.Plot.RenderEvery)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}

	if cfg.MQTT.Enabled {
		m, err := sink.NewMQTT(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, m)
	}

	if cfg.Telemetry {
		t, err := telemetry.NewStore(cfg.TelemetryDB)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, t)
	}

	if cfg.Email.Enabled {
		e, err := alert.NewEmailer(cfg.Email, cfg.Thresholds)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, e)
	}

	return sinks, nil
}

func closeSinks(sinks []sink.Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Warn().Str("sink", s.Name()).Err(err).Msg("Failed to close sink")
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
