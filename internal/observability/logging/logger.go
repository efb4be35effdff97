// Package logging configures zerolog for the client and derives scoped
// loggers from a base logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "ai-speech-stream-client"

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Init configures the process-wide zerolog logger and returns it. Logs go
// to stderr so transcript output on stdout stays clean. ZEROLOG_LOG_LEVEL
// overrides the configured level; ENV=dev switches to console output.
func Init(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(envLevel)); err == nil {
			level = parsed
		}
	} else if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if os.Getenv("ENV") == "dev" || cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	log.Logger = logger.With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return log.Logger
}

// WithSession tags logger with the session id.
func WithSession(logger zerolog.Logger, sessionId string) zerolog.Logger {
	return logger.With().Str("sessionId", sessionId).Logger()
}

// WithComponent tags logger with the emitting component.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
