/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package utils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// slogHandler adapts a Logger to the log/slog Handler interface so that
// libraries speaking slog (the media engine) share our sink and level gate.
type slogHandler struct {
	logger *Logger
	attrs  []slog.Attr
	groups []string
}

// NewSlogLogger wraps a Logger into a *slog.Logger.
func NewSlogLogger(logger *Logger) *slog.Logger {
	return slog.New(&slogHandler{logger: logger})
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.logger.mu.RLock()
	defer h.logger.mu.RUnlock()
	return slogToLevel(level) >= h.logger.level
}

func (h *slogHandler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(record.Message)

	appendAttr := func(attr slog.Attr) {
		key := attr.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&sb, " %s=%v", key, attr.Value.Any())
	}
	for _, attr := range h.attrs {
		appendAttr(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(attr)
		return true
	})

	h.logger.log(slogToLevel(record.Level), "%s", sb.String())
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func slogToLevel(level slog.Level) LogLevel {
	switch {
	case level < slog.LevelInfo:
		return LogLevelDebug
	case level < slog.LevelWarn:
		return LogLevelInfo
	case level < slog.LevelError:
		return LogLevelWarn
	default:
		return LogLevelError
	}
}
