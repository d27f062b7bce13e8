// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger opens (or creates) the file at path in append mode and returns a logger writing to it.
//
// Used by the TUI, which owns the terminal. The caller closes the returned file.
func NewFileLogger(path string) (*log.Logger, *os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{ReportTimestamp: true, Formatter: log.LogfmtFormatter})
	return logger, f, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a [log.Level].
// Empty strings resolve to info.
func ParseLevel(s string) (log.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return log.InfoLevel, nil
	}

	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return lvl, nil
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}
