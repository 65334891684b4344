// Package logging configures the global zerolog logger for homedeck.
// Console output goes to stderr with human-friendly formatting; when a log
// file is configured, JSON lines are also written to a size-rotated file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger behavior.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string
	// File is an optional path for persistent JSON logs.
	File string
	// Console enables the pretty stderr writer. Disabled when running
	// as a service behind a log collector.
	Console bool
}

// DefaultConfig returns the standard interactive configuration.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Console: true,
	}
}

// Setup initializes the global logger. Safe to call more than once; the
// last call wins.
func Setup(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// parseLevel maps a config string to a zerolog level, defaulting to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
