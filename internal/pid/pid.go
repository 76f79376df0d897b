// Package pid guards against a second freezerctl instance fighting over the
// I2C bus.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
)

const pidFile = "freezerctl.pid"

// Write writes the current process ID to the PID file, failing with
// ErrAlreadyRunning if a live process already holds it.
func Write() error {
	path := filepath.Join(os.TempDir(), pidFile)

	if data, err := os.ReadFile(path); err == nil {
		if old, err := strconv.Atoi(string(data)); err == nil {
			if process, err := os.FindProcess(old); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					return errors.New(errors.ErrAlreadyRunning)
				}
			}
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errors.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove() error {
	path := filepath.Join(os.TempDir(), pidFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrap(errors.ErrInternal, err)
	}

	return nil
}
