// Package monitoring - logger.go provides structured logging via zerolog.
//
// DESIGN: The adapter logs through the global zerolog logger. Global()
// replaces it once the config is loaded:
//   - level falls back to info when unparsable
//   - output is stdout, stderr, or a file whose directory is created
//   - console format is for operators watching the terminal next to
//     SillyTavern, json for log shippers
//
// A file that cannot be opened never silences logging: Global falls back to
// stdout and reports the error so the caller can log it there.
package monitoring

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger wraps zerolog.Logger and owns the log file, if any.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

// New builds a Logger from cfg.
func New(cfg LoggerConfig) (*Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	l := &Logger{}
	var out io.Writer
	switch cfg.Output {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		out = f
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: l.file != nil}
	}

	l.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Wrap adapts an existing zerolog logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Global installs a logger built from cfg as the zerolog global. When cfg
// cannot be honoured, stdout is used with cfg's level and format and the
// error is returned.
func Global(cfg LoggerConfig) (*Logger, error) {
	l, err := New(cfg)
	if err != nil {
		fallback := cfg
		fallback.Output = "stdout"
		l, _ = New(fallback)
	}
	log.Logger = l.zl
	return l, err
}

// Close closes the log file. Loggers writing to stdout or stderr ignore it.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debug returns a debug event.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info returns an info event.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn returns a warn event.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error returns an error event.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// RequestIDFromContext returns the request ID set by the gateway, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestIDContext returns a copy of ctx carrying requestID.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
