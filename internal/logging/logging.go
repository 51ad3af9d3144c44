// Package logging sets up the per-invocation run log. Every run writes to
// its own timestamped file and to stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// TimestampLayout is used in log, run directory and run log names.
const TimestampLayout = "20060102_150405"

// RunLog is a logger bound to one log file.
type RunLog struct {
	*logrus.Logger
	Path string
	file *os.File
}

// New returns a logger writing to w with the run log format.
func New(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Open creates dir when needed and opens dir/name for appending. Entries
// go to the file and to console.
func Open(dir, name string, console io.Writer, verbose bool) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = f
	if console != nil {
		w = io.MultiWriter(console, f)
	}
	return &RunLog{Logger: New(w, verbose), Path: path, file: f}, nil
}

// BackupLogName is backup_log_{KIND}_{timestamp}.log.
func BackupLogName(kind, timestamp string) string {
	return fmt.Sprintf("backup_log_%s_%s.log", kind, timestamp)
}

// RestoreLogName is restore_log_{timestamp}.log.
func RestoreLogName(timestamp string) string {
	return fmt.Sprintf("restore_log_%s.log", timestamp)
}

// Sync flushes the log file to disk.
func (r *RunLog) Sync() error {
	return r.file.Sync()
}

// Close closes the log file. The logger must not be used afterwards.
func (r *RunLog) Close() error {
	return r.file.Close()
}
