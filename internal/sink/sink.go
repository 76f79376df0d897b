// Package sink contains the consumers a reading is fanned out to: the OLED
// display, the rotating on-disk log, the chart renderer and the MQTT
// publisher. Sink failures are isolated by the monitor loop and never stop
// delivery to the remaining sinks.
package sink

import (
	"context"

	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

// Sink consumes readings. Publish must not block past one poll interval;
// a failing sink returns an ErrSinkFailure-coded error and is expected to
// accept the next reading again.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r sensor.Reading) error
	Close() error
}
