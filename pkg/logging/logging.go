// Package logging is a thin layer over log/slog that tags entries with the
// resolver's own dimensions: component, stage, resolution and request.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"m3u8-resolver/pkg/types"
)

type ctxKey struct{}

// redacted lists attribute keys whose values are never written.
var redacted = map[string]bool{
	"token":        true,
	"auth_token":   true,
	"key":          true,
	"api_password": true,
}

// Logger embeds slog.Logger so the usual Info/Warn/... calls work directly.
type Logger struct {
	*slog.Logger
}

// New builds a text or JSON logger writing to w (stdout when nil).
func New(level string, jsonFormat bool, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: replaceAttr,
	}
	if jsonFormat {
		return &Logger{slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &Logger{slog.New(slog.NewTextHandler(w, opts))}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339))
		}
	case redacted[a.Key] && a.Value.String() != "":
		a.Value = slog.StringValue("[redacted]")
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{slog.New(slog.DiscardHandler)}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext stores l in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Lookup returns the logger stored by WithContext.
func Lookup(ctx context.Context) (*Logger, bool) {
	l, ok := ctx.Value(ctxKey{}).(*Logger)
	return l, ok
}

// FromContext returns the logger stored by WithContext, or one wrapping
// slog.Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := Lookup(ctx); ok {
		return l
	}
	return &Logger{slog.Default()}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

func (l *Logger) WithStage(stage types.Stage) *Logger {
	return l.With("stage", string(stage))
}

func (l *Logger) WithResolution(id string) *Logger {
	return l.With("resolution_id", id)
}

func (l *Logger) WithRequestID(id string) *Logger {
	return l.With("request_id", id)
}

func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.With("duration_ms", d.Milliseconds())
}

// RequestLogger tags l with the fields of one HTTP request.
func (l *Logger) RequestLogger(method, path, remoteAddr, requestID string) *Logger {
	return l.With(
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"request_id", requestID,
	)
}
