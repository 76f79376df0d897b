package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

const (
	fileLayout = "2006-01-02"
	dirPerm    = 0o755
	filePerm   = 0o644
)

// CSVLog appends one record per reading to a daily file <dir>/YYYY-MM-DD.csv
// and prunes files older than the configured number of backup days. A record
// is the ISO-8601 timestamp, the source, quantity=value pairs in stable
// order, and the alert flag.
type CSVLog struct {
	dir        string
	backupDays int
	current    *os.File
	curDate    string
}

// NewCSVLog creates the log directory if needed. The first file is opened
// lazily on the first publish.
func NewCSVLog(dir string, backupDays int) (*CSVLog, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(errors.ErrInitFailed, err)
	}
	if backupDays < 1 {
		backupDays = 1
	}

	return &CSVLog{dir: dir, backupDays: backupDays}, nil
}

func (l *CSVLog) Name() string {
	return "log"
}

func (l *CSVLog) Publish(_ context.Context, r sensor.Reading) error {
	if err := l.rotate(r.Time); err != nil {
		return err
	}

	if _, err := l.current.WriteString(formatRecord(r) + "\n"); err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}

	return nil
}

func (l *CSVLog) rotate(t time.Time) error {
	date := t.Format(fileLayout)
	if l.current != nil && l.curDate == date {
		return nil
	}

	if l.current != nil {
		if err := l.current.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close previous log file")
		}
		l.current = nil
	}

	path := filepath.Join(l.dir, date+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}
	l.current = f
	l.curDate = date

	l.prune(t)

	return nil
}

// prune removes daily files older than the backup window. Failures here are
// logged and ignored; they must not block the current write.
func (l *CSVLog) prune(now time.Time) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to list log directory for pruning")
		return
	}

	cutoff := now.AddDate(0, 0, -l.backupDays)
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".csv")
		if name == e.Name() {
			continue
		}
		date, err := time.Parse(fileLayout, name)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
				logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to prune old log file")
			}
		}
	}
}

func (l *CSVLog) Close() error {
	if l.current == nil {
		return nil
	}
	if err := l.current.Close(); err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}
	l.current = nil

	return nil
}

func formatRecord(r sensor.Reading) string {
	fields := make([]string, 0, len(r.Values)+3)
	fields = append(fields, r.Time.Format(time.RFC3339), r.Source)
	for _, q := range r.Quantities() {
		fields = append(fields, fmt.Sprintf("%s=%.1f", q, r.Values[q]))
	}
	alert := "0"
	if r.Alert {
		alert = "1"
	}
	fields = append(fields, "alert="+alert)

	return strings.Join(fields, ",")
}
