// File: internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

// ZeroLogger adapts a zerolog.Logger to the Logger interface.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New builds a logger for the given service. format is "json" or "console".
func New(service, level, format string) (*ZeroLogger, error) {
	return NewWithWriter(os.Stdout, service, level, format)
}

// NewWithWriter is New with an explicit destination, mostly for tests.
func NewWithWriter(out io.Writer, service, level, format string) (*ZeroLogger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var w io.Writer
	switch strings.ToLower(format) {
	case "json", "":
		w = out
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	zl := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
	return &ZeroLogger{zl: zl}, nil
}

// FromEnv picks json output in production and console output everywhere else.
func FromEnv(service, env, level, format string) Logger {
	if env == "test" {
		return Nop()
	}
	if format == "" {
		format = "console"
		if strings.EqualFold(env, "production") {
			format = "json"
		}
	}
	l, err := New(service, level, format)
	if err != nil {
		fallback, _ := New(service, "info", format)
		if fallback == nil {
			fallback, _ = New(service, "info", "json")
		}
		fallback.Warn("invalid logger settings, using defaults", "error", err)
		return fallback
	}
	return l
}

func (z *ZeroLogger) Info(msg string, keysAndValues ...interface{}) {
	z.emit(z.zl.Info(), msg, keysAndValues)
}

func (z *ZeroLogger) Error(msg string, keysAndValues ...interface{}) {
	z.emit(z.zl.Error(), msg, keysAndValues)
}

func (z *ZeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.emit(z.zl.Debug(), msg, keysAndValues)
}

func (z *ZeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.emit(z.zl.Warn(), msg, keysAndValues)
}

// With returns a child logger carrying the given key/value pairs on every entry.
func (z *ZeroLogger) With(keysAndValues ...interface{}) Logger {
	ctx := z.zl.With()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ctx = ctx.Interface(keyString(keysAndValues[i]), keysAndValues[i+1])
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

func (z *ZeroLogger) emit(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(keysAndValues); i += 2 {
		key := keyString(keysAndValues[i])
		if i+1 >= len(keysAndValues) {
			ev = ev.Str(key, "(MISSING)")
			break
		}
		switch v := keysAndValues[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func keyString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) With(keysAndValues ...interface{}) Logger      { return n }

// Nop returns a Logger that discards everything.
func Nop() Logger { return &NoOpLogger{} }
