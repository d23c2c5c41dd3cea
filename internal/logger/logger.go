// Package logger wraps zerolog setup shared by all run modes.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger for the given service name. Format "console" is meant
// for local development; everything else emits JSON.
func New(service, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out = zerolog.Logger{}
	if format == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		out = zerolog.New(os.Stderr)
	}

	return out.Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()
}
