package dgbatch

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used by the manager. Arguments are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// zerologLogger adapts a zerolog.Logger to Logger.
type zerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps l as a Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{logger: l}
}

// DefaultLogger returns a console logger on stderr at info level.
func DefaultLogger() Logger {
	l := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	return NewZerologLogger(l)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return NewZerologLogger(zerolog.Nop())
}

func (l *zerologLogger) Debug(msg string, args ...interface{}) {
	l.event(l.logger.Debug(), args).Msg(msg)
}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	l.event(l.logger.Info(), args).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, args ...interface{}) {
	l.event(l.logger.Warn(), args).Msg(msg)
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	l.event(l.logger.Error(), args).Msg(msg)
}

func (l *zerologLogger) With(args ...interface{}) Logger {
	if len(args) == 0 {
		return l
	}
	return &zerologLogger{logger: l.logger.With().Fields(args).Logger()}
}

func (l *zerologLogger) event(e *zerolog.Event, args []interface{}) *zerolog.Event {
	if len(args) == 0 {
		return e
	}
	return e.Fields(args)
}
