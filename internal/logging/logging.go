// Package logging builds the slog loggers used by the server and logs
// errors with the context attached to them.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/oops"
)

// Format is the output format of a logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrInvalidFormat = errors.New("invalid log format")

// ParseFormat parses a log format, either "text" or "json".
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(raw string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(raw))
	return l, err
}

// New creates a logger that writes records of at least level to w.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h)
}

// LogError logs err at error level. Errors created with oops have their
// code and context expanded into separate attributes.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, append(attrs, errorAttrs(err)...)...)
}

// LogWarn is LogError at warn level, for expected failures.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Warn(msg, append(attrs, errorAttrs(err)...)...)
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, "domain", domain)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
