package sensor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
)

// CRC vector from the SHT3x datasheet: 0xBEEF -> 0x92.
func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0x92), crc8([]byte{0xbe, 0xef}))
}

func TestConvert(t *testing.T) {
	// 0x6666 is 0.4 full scale: -45 + 175*0.4 = 25.0 °C.
	assert.InDelta(t, 25.0, convertTemperature(0x6666), 0.01)
	assert.InDelta(t, 50.0, convertHumidity(0x8000), 0.01)
	assert.InDelta(t, -45.0, convertTemperature(0x0000), 0.01)
	assert.InDelta(t, 130.0, convertTemperature(0xffff), 0.01)
}

func measurementFrame(rawT, rawRH uint16) []byte {
	buf := []byte{
		byte(rawT >> 8), byte(rawT), 0,
		byte(rawRH >> 8), byte(rawRH), 0,
	}
	buf[2] = crc8(buf[0:2])
	buf[5] = crc8(buf[3:5])
	return buf
}

func TestRead(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: AddrA, W: []byte{0x24, 0x00}, R: nil},
			{Addr: AddrA, W: nil, R: measurementFrame(0x6666, 0x8000)},
		},
		DontPanic: true,
	}

	src := NewSHT3x(bus, AddrA, "chest freezer")
	reading, err := src.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "chest freezer", reading.Source)
	temp, ok := reading.Value(Temperature)
	require.True(t, ok)
	assert.InDelta(t, 25.0, temp, 0.01)
	rh, ok := reading.Value(Humidity)
	require.True(t, ok)
	assert.InDelta(t, 50.0, rh, 0.01)
	assert.False(t, reading.Alert)
	assert.False(t, reading.Sentinel)
	assert.False(t, reading.Time.IsZero())
}

func TestReadChecksumMismatch(t *testing.T) {
	frame := measurementFrame(0x6666, 0x8000)
	frame[2] ^= 0xff

	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: AddrA, W: []byte{0x24, 0x00}, R: nil},
			{Addr: AddrA, W: nil, R: frame},
		},
		DontPanic: true,
	}

	_, err := NewSHT3x(bus, AddrA, "f").Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSensorFault))
	assert.True(t, errors.IsRetryable(err))
}

func TestReadBusStuck(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: AddrA, W: []byte{0x24, 0x00}, R: nil},
			{Addr: AddrA, W: nil, R: measurementFrame(0xffff, 0xffff)},
		},
		DontPanic: true,
	}

	_, err := NewSHT3x(bus, AddrA, "f").Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSensorFault))
}

func TestReadUnavailable(t *testing.T) {
	// Empty playback: the first transaction fails.
	bus := &i2ctest.Playback{DontPanic: true}

	_, err := NewSHT3x(bus, AddrA, "f").Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSensorUnavailable))
}

// A muxed read must select the channel before touching the sensor and
// release it afterwards, also when the sensor transaction fails.
func TestMuxedReadScope(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70, W: []byte{1 << 3}, R: nil},
			{Addr: AddrA, W: []byte{0x24, 0x00}, R: nil},
			{Addr: AddrA, W: nil, R: measurementFrame(0x6666, 0x8000)},
			{Addr: 0x70, W: []byte{0}, R: nil},
		},
		DontPanic: true,
	}

	mux := NewMux(bus, 0x70)
	src := NewMuxedSHT3x(bus, AddrA, mux, 3, "garage")

	reading, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "garage", reading.Source)
	// All playback ops consumed, including the trailing deselect.
	require.NoError(t, bus.Close())
}

func TestMuxedReadReleasesOnFailure(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70, W: []byte{1 << 2}, R: nil},
			// Measurement command fails: no op recorded for 0x44.
			{Addr: 0x70, W: []byte{0}, R: nil},
		},
		DontPanic: true,
	}

	mux := NewMux(bus, 0x70)
	src := NewMuxedSHT3x(bus, AddrA, mux, 2, "f")

	_, err := src.Read(context.Background())
	require.Error(t, err)
	require.NoError(t, bus.Close())
}

func TestHeaterCommands(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: AddrA, W: []byte{0x30, 0x6d}, R: nil},
			{Addr: AddrA, W: []byte{0x30, 0x66}, R: nil},
		},
		DontPanic: true,
	}

	src := NewSHT3x(bus, AddrA, "f")
	require.NoError(t, src.Heater(true))
	require.NoError(t, src.Heater(false))
	require.NoError(t, bus.Close())
}

func TestMuxedHeaterScope(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70, W: []byte{1 << 1}, R: nil},
			{Addr: AddrA, W: []byte{0x30, 0x6d}, R: nil},
			{Addr: 0x70, W: []byte{0}, R: nil},
		},
		DontPanic: true,
	}

	mux := NewMux(bus, 0x70)
	src := NewMuxedSHT3x(bus, AddrA, mux, 1, "f")

	require.NoError(t, src.Heater(true))
	require.NoError(t, bus.Close())
}

func testTime() time.Time {
	return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
}

func TestSentinelReading(t *testing.T) {
	r := NewSentinel("freezer", testTime())
	assert.True(t, r.Alert)
	assert.True(t, r.Sentinel)

	temp, ok := r.Value(Temperature)
	require.True(t, ok)
	assert.True(t, math.IsNaN(temp))
	assert.Equal(t, []string{Humidity, Temperature}, r.Quantities())
}
