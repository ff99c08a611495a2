package component

import (
	"context"
	"log/slog"
	"strings"
)

// Level is the severity of a log entry.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger receives the component's log entries. Implementations must not
// block for long; they are called inline with API calls.
type Logger interface {
	Log(message string, level Level, channel string)
}

// NopLogger discards every entry.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(string, Level, string) {}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a Logger writing to l. The channel is attached as
// the "channel" attribute.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l}
}

func (s *slogLogger) Log(message string, level Level, channel string) {
	s.logger.Log(context.Background(), slogLevel(level), message, slog.String("channel", channel))
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MaskToken hides all but the edges of a token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
