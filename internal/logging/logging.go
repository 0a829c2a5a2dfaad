package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a logger writing to w. With jsonOutput the logger emits one JSON
// object per line; otherwise it uses zerolog's human-readable console writer.
func New(w io.Writer, jsonOutput bool, level zerolog.Level) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Init sets the package-level default logger. Logs always go to stderr so
// report output on stdout stays clean.
func Init(jsonOutput bool, level zerolog.Level) zerolog.Logger {
	l := New(os.Stderr, jsonOutput, level)
	log.Logger = l
	return l
}

// ParseLevel converts "debug", "info", "warn" or "error" to a zerolog level.
// Unknown strings default to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
