package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors (fatal at startup only)
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrMissingConfig ErrorCode = "missing_configuration"
	ErrBindFlags     ErrorCode = "bind_flags_failed"
	ErrReadConfig    ErrorCode = "read_config_failed"
	ErrInvalidLevel  ErrorCode = "invalid_log_level"

	// Sensor errors (retryable)
	ErrSensorUnavailable ErrorCode = "sensor_unavailable"
	ErrSensorFault       ErrorCode = "sensor_fault"
	ErrNoSensors         ErrorCode = "no_sensors_found"

	// Sink errors (isolated, non-fatal)
	ErrSinkFailure ErrorCode = "sink_failure"

	// Telemetry errors
	ErrStorageInit   ErrorCode = "telemetry_storage_init_failed"
	ErrStorageAccess ErrorCode = "telemetry_storage_access_failed"
	ErrStorageClose  ErrorCode = "telemetry_storage_close_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidLevel:      "Invalid log level",
	ErrSensorUnavailable: "Sensor bus or device unreachable",
	ErrSensorFault:       "Sensor returned a malformed or out-of-range value",
	ErrNoSensors:         "No sensors detected",
	ErrSinkFailure:       "Sink write failed",
	ErrStorageInit:       "Failed to initialize telemetry storage",
	ErrStorageAccess:     "Failed to access telemetry storage",
	ErrStorageClose:      "Failed to close telemetry storage",
}

func messageFor(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
