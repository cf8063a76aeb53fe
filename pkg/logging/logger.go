// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every page request and state transition.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs one line per chunk and per retrieval.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, cap suspicion and incomplete chunks.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed chunks and startup errors only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service, if set, is attached to every line as the "service" field.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug:
//   - every page request (chunk, page, limit_from, cursor size)
//   - retrieval state transitions
//   - session cache hits
//
// Info:
//   - retrieval start and completion (chunks, events, duplicates, duration)
//   - one line per aggregated chunk
//   - session bootstraps, server startup/shutdown
//
// Warn:
//   - retry attempts
//   - upstream cap suspected, chunk stopped on page budget
//   - session store unavailable, missing session cookies
//
// Error:
//   - chunk failed after all retries
//   - configuration and startup errors
//
// Context Fields:
//   - component: emitting package (client, fetcher, retriever, session, server)
//   - retrieval_id: uuid of one Retrieve call
//   - chunk, from, to: chunk index and dates (YYYY-MM-DD)
//   - page, attempt: page number within a chunk, retry attempt
//   - extracted, new, duplicates: per-chunk counts
//   - error_class: client, server, rate_limit, network, parse
//   - state: PLANNING, FETCHING, AGGREGATING, CHUNK_FAILED, DONE, CANCELLED
