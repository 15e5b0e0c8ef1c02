// Package logger configures the process-wide slog logger and carries
// request-scoped fields through context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

var current atomic.Pointer[slog.Logger]

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// Init installs a logger writing to stdout. format is "json" or "text";
// unknown levels fall back to info.
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

func InitWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	current.Store(l)
	slog.SetDefault(l)
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Get returns the installed logger, installing the JSON info default on
// first use.
func Get() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init("info", "json")
	return current.Load()
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithContext adds request_id and user_id when ctx carries them.
func WithContext(ctx context.Context) *slog.Logger {
	l := Get()
	if id, ok := RequestIDFromContext(ctx); ok {
		l = l.With("request_id", id)
	}
	if id, ok := UserIDFromContext(ctx); ok {
		l = l.With("user_id", id)
	}
	return l
}

func WithFields(fields ...any) *slog.Logger {
	return Get().With(fields...)
}

func NewRequestID() string {
	return uuid.NewString()
}

// Fatal logs at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
