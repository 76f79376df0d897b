package sensor

import (
	"fmt"

	"codeberg.org/frostwatch/freezerctl/internal/config"
	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"periph.io/x/conn/v3/i2c"
)

// Build constructs the configured sources. Sensors with an explicit mux
// channel are probed behind the multiplexer; a sensor without a channel
// hangs directly on the bus. With no sensors configured, every mux channel
// is scanned instead. Finding no sensor at all is fatal at startup.
func Build(bus i2c.Bus, mux *Mux, sensors []config.Sensor) ([]Source, error) {
	if len(sensors) == 0 {
		return scan(bus, mux)
	}

	sources := make([]Source, 0, len(sensors))
	for _, sc := range sensors {
		if sc.Channel == nil {
			if !Probe(bus, AddrA) {
				return nil, errors.WithMessage(errors.ErrSensorUnavailable,
					fmt.Sprintf("sensor %q not found on bus", sc.Name))
			}
			sources = append(sources, NewSHT3x(bus, AddrA, sc.Name))
			continue
		}
		ch := *sc.Channel

		if mux == nil {
			return nil, errors.WithMessage(errors.ErrInvalidConfig,
				fmt.Sprintf("sensor %q uses a mux channel but no mux is configured", sc.Name))
		}
		if err := mux.Select(ch); err != nil {
			return nil, err
		}
		found := Probe(bus, AddrA)
		if err := mux.Deselect(); err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.WithMessage(errors.ErrSensorUnavailable,
				fmt.Sprintf("sensor %q not found on mux channel %d", sc.Name, ch))
		}
		sources = append(sources, NewMuxedSHT3x(bus, AddrA, mux, ch, sc.Name))
	}

	return sources, nil
}

// scan probes the bus and every mux channel for SHT3x devices.
func scan(bus i2c.Bus, mux *Mux) ([]Source, error) {
	var sources []Source

	if Probe(bus, AddrA) {
		logger.Debug().Msg("Found SHT3x directly on bus")
		sources = append(sources, NewSHT3x(bus, AddrA, "freezer"))
	}

	if mux != nil {
		for ch := 0; ch < MuxChannels; ch++ {
			if err := mux.Select(ch); err != nil {
				continue
			}
			found := Probe(bus, AddrA)
			if err := mux.Deselect(); err != nil {
				return nil, err
			}
			if found {
				name := fmt.Sprintf("freezer-%d", ch)
				logger.Debug().Int("channel", ch).Msg("Found SHT3x on mux channel")
				sources = append(sources, NewMuxedSHT3x(bus, AddrA, mux, ch, name))
			}
		}
	}

	if len(sources) == 0 {
		return nil, errors.New(errors.ErrNoSensors)
	}

	return sources, nil
}
