// Package sensor provides access to SHT3x temperature/humidity sensors,
// directly on an I2C bus or behind a TCA9548A multiplexer.
package sensor

import (
	"math"
	"sort"
	"time"
)

// Quantity names used as keys in Reading.Values.
const (
	Temperature = "temperature"
	Humidity    = "humidity"
)

// Reading is a single measurement from one source. It is immutable once
// constructed and is never handed to a sink half-built.
type Reading struct {
	Source   string
	Time     time.Time
	Values   map[string]float64
	Alert    bool
	Sentinel bool
}

// NewReading constructs a reading with the given measured values.
func NewReading(source string, t time.Time, values map[string]float64) Reading {
	return Reading{Source: source, Time: t, Values: values}
}

// NewSentinel constructs the alert reading published when a source has
// exhausted its retries. Values are NaN so sinks can render it distinctly.
func NewSentinel(source string, t time.Time) Reading {
	return Reading{
		Source: source,
		Time:   t,
		Values: map[string]float64{
			Temperature: math.NaN(),
			Humidity:    math.NaN(),
		},
		Alert:    true,
		Sentinel: true,
	}
}

// WithAlert returns a copy of the reading with the alert flag set.
func (r Reading) WithAlert() Reading {
	r.Alert = true
	return r
}

// Value returns the measured value for a quantity.
func (r Reading) Value(quantity string) (float64, bool) {
	v, ok := r.Values[quantity]
	return v, ok
}

// Quantities returns the quantity names in stable order.
func (r Reading) Quantities() []string {
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
