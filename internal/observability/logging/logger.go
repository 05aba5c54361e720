// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "conversation-feed-service").
		Logger()
}

// Logger returns the service logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithRoom returns a logger with room context.
func WithRoom(room string) zerolog.Logger {
	return log.With().
		Str("room", room).
		Logger()
}

// WithSource returns a logger with room and source context.
func WithSource(room, sourceId string) zerolog.Logger {
	return log.With().
		Str("room", room).
		Str("sourceId", sourceId).
		Logger()
}

// WithSegment returns a logger with room, source and segment context.
func WithSegment(room, sourceId, segmentId string) zerolog.Logger {
	return log.With().
		Str("room", room).
		Str("sourceId", sourceId).
		Str("segmentId", segmentId).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
