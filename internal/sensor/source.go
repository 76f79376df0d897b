package sensor

import "context"

// Source is a pollable sensor. Read blocks for at most one bus transaction
// and fails with ErrSensorUnavailable when the device cannot be reached, or
// ErrSensorFault when it answers with a malformed or implausible value.
type Source interface {
	Name() string
	Read(ctx context.Context) (Reading, error)
}

// Heatable is implemented by sources whose sensor carries an internal
// heater, used periodically to shed condensation.
type Heatable interface {
	Heater(on bool) error
}
