// Package logging wraps zerolog behind a small Debug/Info/Warn/Error call
// shape with printf-style formatting, so call sites read like plain log
// statements while the backing implementation is structured.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"bentoauthz/internal/constants"
)

// Logger is a thin leveled wrapper around zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing structured JSON to w at the given minimum
// level (one of "debug", "info", "warn", "error"; unrecognized values fall
// back to info).
func New(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = constants.LogTimestampFormat
	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Debug(format string, args ...interface{}) { l.zl.Debug().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Info(format string, args ...interface{})  { l.zl.Info().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(format string, args ...interface{})  { l.zl.Warn().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Error(format string, args ...interface{}) { l.zl.Error().Msg(fmt.Sprintf(format, args...)) }

// With returns a Logger that attaches a structured field to every
// subsequent event, for per-request loggers carrying a request ID.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}
