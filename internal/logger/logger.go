// Package logger provides leveled structured logging.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging level.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

var (
	defaultLogger *zerolog.Logger
	exit          = os.Exit
)

// ParseLevel maps a config level name onto a Level. Unknown names fall back to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format,
// writing to stderr.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter initializes the default logger on an arbitrary writer.
// format "json" emits one JSON object per line, "text" a human-readable
// console line with the calling file and line.
func InitWriter(w io.Writer, level string, format string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorFieldName = "err"

	var zl zerolog.Logger
	if strings.ToLower(format) == "text" {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "2006/01/02 15:04:05.000000", NoColor: true}
		zl = zerolog.New(cw).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	} else {
		zl = zerolog.New(w).With().Timestamp().Logger()
	}
	zl = zl.Level(ParseLevel(level))
	defaultLogger = &zl
}

// Enabled reports whether messages at lvl would currently be written.
func Enabled(lvl Level) bool {
	return defaultLogger != nil && lvl >= defaultLogger.GetLevel()
}

func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug().Msgf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info().Msgf(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn().Msgf(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error().Msgf(format, args...)
	}
}

// Fatal logs at fatal level and exits the process with status 1.
func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	}
	exit(1)
}
