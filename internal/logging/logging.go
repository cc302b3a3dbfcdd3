// Package logging configures zerolog for the whole process. Output goes to
// stderr so stdout stays clean for command results and the MCP stdio
// transport.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger. Verbosity maps to zerolog levels:
// 0=warn, 1=info, 2=debug, 3+=trace.
func Setup(verbosity int) {
	var level zerolog.Level
	switch {
	case verbosity <= 0:
		level = zerolog.WarnLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	case verbosity == 2:
		level = zerolog.DebugLevel
	default:
		level = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(level)

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// GetLogger returns a logger tagged with the given component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
