// Package telemetry configures the runtime's structured logger. This is the
// nexus/portal/codec's own logger — the sample application keeps using
// pterm for its interactive console output (see cmd/chatserver, cmd/chatclient),
// exactly as the teacher repo already separates util.Log* (user-facing) from
// lower-level instrumentation.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the runtime's base logger. When pretty is true the output is a
// human-readable console writer (development); otherwise it is newline
// JSON (production), grounded on R2Northstar-Atlas's configureLogging.
func New(level zerolog.Level, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Nop returns a logger that discards everything, used as the zero-value
// default so packages never have to nil-check their logger field.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
