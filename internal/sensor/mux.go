package sensor

import (
	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"periph.io/x/conn/v3/i2c"
)

// Channels on a TCA9548A.
const MuxChannels = 8

// Mux drives a TCA9548A I2C multiplexer. Selecting a channel is a single
// control-register write of the channel bitmask; writing zero disconnects
// all downstream segments. The mux is owned by the monitor loop and only
// ever touched from its single goroutine.
type Mux struct {
	dev      i2c.Dev
	selected int
}

// NewMux returns a handle for the multiplexer at addr (factory default 0x70).
func NewMux(bus i2c.Bus, addr uint16) *Mux {
	return &Mux{
		dev:      i2c.Dev{Bus: bus, Addr: addr},
		selected: -1,
	}
}

// Select connects the given downstream channel (0-7).
func (m *Mux) Select(channel int) error {
	if channel < 0 || channel >= MuxChannels {
		return errors.WithMessage(errors.ErrSensorUnavailable, "mux channel out of range")
	}
	if m.selected == channel {
		return nil
	}

	if err := m.dev.Tx([]byte{1 << uint(channel)}, nil); err != nil {
		m.selected = -1
		return errors.Wrap(errors.ErrSensorUnavailable, err)
	}
	m.selected = channel

	return nil
}

// Deselect disconnects all downstream channels so devices with duplicate
// addresses cannot shadow each other between reads.
func (m *Mux) Deselect() error {
	if err := m.dev.Tx([]byte{0}, nil); err != nil {
		m.selected = -1
		return errors.Wrap(errors.ErrSensorUnavailable, err)
	}
	m.selected = -1

	return nil
}
