// Package logger builds the slog.Logger used by jst and the mock server.
// Attributes carrying credentials are redacted before they reach a handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces the value of a sensitive attribute.
const Redacted = "[REDACTED]"

// defaultSensitiveKeys are attribute keys never written in clear text.
var defaultSensitiveKeys = []string{
	"app_secret",
	"access_token",
	"refresh_token",
	"sign",
	"auth_code",
}

type options struct {
	sensitive map[string]struct{}
}

// Option configures the logger.
type Option func(*options)

// WithSensitiveKeys adds attribute keys to redact.
func WithSensitiveKeys(keys ...string) Option {
	return func(o *options) {
		for _, k := range keys {
			o.sensitive[strings.ToLower(k)] = struct{}{}
		}
	}
}

// WithoutRedaction disables redaction, e.g. when tokens are logged on
// purpose.
func WithoutRedaction() Option {
	return func(o *options) {
		o.sensitive = map[string]struct{}{}
	}
}

// New creates a logger writing to stderr.
// Level: "debug", "info", "warn" (or "warning"), "error". Default "info".
// Format: "json" or "text". Default "text".
func New(level, format string, opts ...Option) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format, opts...)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, level, format string, opts ...Option) *slog.Logger {
	o := &options{sensitive: make(map[string]struct{}, len(defaultSensitiveKeys))}
	for _, k := range defaultSensitiveKeys {
		o.sensitive[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redactor(o.sensitive),
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	return slog.New(handler)
}

// ParseLevel converts a level string to slog.Level.
// Unrecognized values return LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func redactor(sensitive map[string]struct{}) func([]string, slog.Attr) slog.Attr {
	if len(sensitive) == 0 {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.MessageKey || a.Key == slog.LevelKey || a.Key == slog.TimeKey) {
			return a
		}
		if _, ok := sensitive[strings.ToLower(a.Key)]; ok && a.Value.Kind() != slog.KindGroup {
			return slog.String(a.Key, Redacted)
		}
		return a
	}
}
