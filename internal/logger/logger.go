package logger

import (
	"os"
	"syscall"
	"time"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init initializes the global logger. When running as a service the
// timestamp is dropped from console output because the service manager
// prepends its own.
func Init(level string, isService bool) error {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidLevel, err)
	}
	zerolog.SetGlobalLevel(lvl)

	return nil
}

// IsService checks if the process is running under a service manager.
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

// ErrorWithCode logs an error with its domain error code attached.
func ErrorWithCode(err error) *zerolog.Event {
	return log.Error().
		Str("error_code", string(errors.CodeOf(err))).
		Err(err)
}

// Fatal logs a fatal message and exits the program.
func Fatal() *zerolog.Event {
	return log.Fatal()
}
