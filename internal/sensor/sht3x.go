package sensor

import (
	"context"
	"time"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"periph.io/x/conn/v3/i2c"
)

// SHT3x I2C addresses (ADDR pin low / high).
const (
	AddrA uint16 = 0x44
	AddrB uint16 = 0x45
)

// measureDelay is the worst-case single-shot measurement duration for high
// repeatability per the datasheet (15 ms), with headroom.
const measureDelay = 16 * time.Millisecond

var (
	cmdMeasure   = []byte{0x24, 0x00} // single shot, high repeatability, no clock stretching
	cmdHeaterOn  = []byte{0x30, 0x6d}
	cmdHeaterOff = []byte{0x30, 0x66}
	cmdStatus    = []byte{0xf3, 0x2d}
	cmdSoftReset = []byte{0x30, 0xa2}
)

// SHT3x reads one Sensirion SHT30/31/35 sensor. When the sensor sits behind
// a multiplexer, each transaction runs inside a mux scope: the channel is
// selected before the first bus access and released afterwards, also on
// failure.
type SHT3x struct {
	name    string
	dev     i2c.Dev
	mux     *Mux
	channel int
}

// NewSHT3x returns a source for a sensor wired directly to the bus.
func NewSHT3x(bus i2c.Bus, addr uint16, name string) *SHT3x {
	return &SHT3x{
		name:    name,
		dev:     i2c.Dev{Bus: bus, Addr: addr},
		channel: -1,
	}
}

// NewMuxedSHT3x returns a source for a sensor behind a TCA9548A channel.
func NewMuxedSHT3x(bus i2c.Bus, addr uint16, mux *Mux, channel int, name string) *SHT3x {
	return &SHT3x{
		name:    name,
		dev:     i2c.Dev{Bus: bus, Addr: addr},
		mux:     mux,
		channel: channel,
	}
}

func (s *SHT3x) Name() string {
	return s.name
}

// acquire selects the mux channel for this sensor, if any, and returns the
// matching release function.
func (s *SHT3x) acquire() (func(), error) {
	if s.mux == nil {
		return func() {}, nil
	}
	if err := s.mux.Select(s.channel); err != nil {
		return nil, err
	}
	return func() {
		if err := s.mux.Deselect(); err != nil {
			// The next Select rewrites the control register anyway.
			_ = err
		}
	}, nil
}

// Read performs a single-shot high-repeatability measurement. The sensor
// answers six bytes: temperature word, CRC, humidity word, CRC.
func (s *SHT3x) Read(ctx context.Context) (Reading, error) {
	release, err := s.acquire()
	if err != nil {
		return Reading{}, err
	}
	defer release()

	if err := s.dev.Tx(cmdMeasure, nil); err != nil {
		return Reading{}, errors.Wrap(errors.ErrSensorUnavailable, err)
	}

	// No clock stretching, so wait out the conversion before reading back.
	select {
	case <-ctx.Done():
		return Reading{}, errors.Wrap(errors.ErrSensorUnavailable, ctx.Err())
	case <-time.After(measureDelay):
	}

	var buf [6]byte
	if err := s.dev.Tx(nil, buf[:]); err != nil {
		return Reading{}, errors.Wrap(errors.ErrSensorUnavailable, err)
	}

	if crc8(buf[0:2]) != buf[2] || crc8(buf[3:5]) != buf[5] {
		return Reading{}, errors.WithMessage(errors.ErrSensorFault, "checksum mismatch")
	}

	rawT := uint16(buf[0])<<8 | uint16(buf[1])
	rawRH := uint16(buf[3])<<8 | uint16(buf[4])

	// A bus stuck high or low passes a valid CRC over constant words.
	if (rawT == 0x0000 && rawRH == 0x0000) || (rawT == 0xffff && rawRH == 0xffff) {
		return Reading{}, errors.WithMessage(errors.ErrSensorFault, "constant raw words, bus stuck")
	}

	return NewReading(s.name, time.Now(), map[string]float64{
		Temperature: convertTemperature(rawT),
		Humidity:    convertHumidity(rawRH),
	}), nil
}

// Heater switches the internal heater, used to shed condensation in the
// freezer's saturated air.
func (s *SHT3x) Heater(on bool) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	cmd := cmdHeaterOff
	if on {
		cmd = cmdHeaterOn
	}
	if err := s.dev.Tx(cmd, nil); err != nil {
		return errors.Wrap(errors.ErrSensorUnavailable, err)
	}

	return nil
}

// Reset issues a soft reset, returning the sensor to its idle state.
func (s *SHT3x) Reset() error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := s.dev.Tx(cmdSoftReset, nil); err != nil {
		return errors.Wrap(errors.ErrSensorUnavailable, err)
	}

	return nil
}

// Probe checks whether an SHT3x answers its status register at addr on the
// currently connected bus segment.
func Probe(bus i2c.Bus, addr uint16) bool {
	dev := i2c.Dev{Bus: bus, Addr: addr}
	if err := dev.Tx(cmdStatus, nil); err != nil {
		return false
	}
	var buf [3]byte
	if err := dev.Tx(nil, buf[:]); err != nil {
		return false
	}
	return crc8(buf[0:2]) == buf[2]
}

func convertTemperature(raw uint16) float64 {
	return -45.0 + 175.0*float64(raw)/65535.0
}

func convertHumidity(raw uint16) float64 {
	return 100.0 * float64(raw) / 65535.0
}

// crc8 is the Sensirion CRC-8: polynomial 0x31, initialization 0xff.
func crc8(data []byte) byte {
	crc := byte(0xff)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
