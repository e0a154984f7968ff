// Package logging configures the process-wide zerolog logger. Components
// obtain tagged child loggers via Component so log lines can be filtered
// per subsystem ("ble", "bridge", "adb", ...).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

func init() {
	root = newConsoleLogger(os.Stderr, zerolog.InfoLevel)
}

func newConsoleLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// Setup replaces the root logger with one at the given level. Unknown level
// strings fall back to info.
func Setup(level string) {
	root = newConsoleLogger(os.Stderr, ParseLevel(level))
}

// SetOutput redirects the root logger, used by tests to capture output.
func SetOutput(w io.Writer) {
	root = root.Output(w)
}

// ParseLevel maps a config-file level string to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
