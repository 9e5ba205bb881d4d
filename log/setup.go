// Package log configures the go-ethereum/log (slog-based) logger used by
// both the client and host binaries, adapted from op-service/log's
// NewLogger/CLIConfig shape: a small, explicit constructor instead of the
// global package-level logger go-ethereum itself defaults to.
package log

import (
	"io"
	"log/slog"

	gethlog "github.com/ethereum/go-ethereum/log"
)

// Format selects the slog handler NewLogger builds.
type Format string

const (
	FormatLogFmt   Format = "logfmt"
	FormatJSON     Format = "json"
	FormatTerminal Format = "terminal"
)

// CLIConfig mirrors the flag surface op-service/log exposes on every
// binary's CLI: verbosity, output format, and whether to colorize terminal
// output.
type CLIConfig struct {
	Level  slog.Level
	Format Format
	Color  bool
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{Level: slog.LevelInfo, Format: FormatLogFmt, Color: false}
}

// NewLogger builds a go-ethereum log.Logger writing to w per cfg. The
// client binary runs inside a constrained VM with its stdout piped back to
// the host as ordinary program output, so logfmt (machine-parsable, no
// ANSI) is the default. Both the client and the host binary use
// DefaultCLIConfig; the colorized terminal handler is built only when
// cfg.Format is FormatTerminal.
func NewLogger(w io.Writer, cfg CLIConfig) gethlog.Logger {
	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	case FormatTerminal:
		handler = gethlog.NewTerminalHandlerWithLevel(w, cfg.Level, cfg.Color)
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	}
	return gethlog.NewLogger(handler)
}
