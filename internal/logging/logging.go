// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"swing-trader/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string // debug, info, warn or error
	Console    bool
	Out        io.Writer // console destination, stderr when nil
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Setup builds a logger from cfg and installs it as the global zerolog logger.
func Setup(cfg LogConfig) zerolog.Logger {
	logger := NewLoggerWithConfig(cfg)
	log.Logger = logger
	return logger
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:         out,
			TimeFormat:  time.RFC3339,
			FormatLevel: formatLevel,
		})
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return "???"
	}
	switch ll {
	case "debug":
		return "\033[36mDBG\033[0m"
	case "info":
		return "\033[32mINF\033[0m"
	case "warn":
		return "\033[33mWRN\033[0m"
	case "error":
		return "\033[31mERR\033[0m"
	default:
		return ll
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, falling back to the global logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return log.Logger
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithJob adds a job name to the logger context.
func WithJob(logger zerolog.Logger, job models.JobName) zerolog.Logger {
	return logger.With().Str("job", string(job)).Logger()
}

// WithRunID adds a run ID to the logger context.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// LogPoolEntry logs a symbol added to the pool.
func LogPoolEntry(logger zerolog.Logger, entry models.PoolEntry) {
	logger.Info().
		Str("event", "pooled").
		Str("symbol", entry.Symbol).
		Time("candle1_date", entry.Candle1Date).
		Time("candle3_date", entry.Candle3Date).
		Float64("candle3_high", entry.Candle3High).
		Msg("Trend pattern pooled")
}

// LogSignal logs a buy signal.
func LogSignal(logger zerolog.Logger, signal models.Signal) {
	logger.Info().
		Str("event", "signal").
		Str("symbol", signal.Symbol).
		Str("mode", string(signal.Mode)).
		Float64("candle3_high", signal.Candle3High).
		Float64("current_price", signal.CurrentPrice).
		Msg("Buy signal")
}

// LogAPICall logs a call to an upstream data source.
func LogAPICall(logger zerolog.Logger, source, symbol string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("source", source).
		Str("symbol", symbol).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Data request failed")
	} else {
		event.Msg("Data request completed")
	}
}
