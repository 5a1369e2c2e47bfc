// Package logging configures the linker's structured logger: a text
// handler to stderr gated by a configurable level, fanned out with
// samber/slog-multi so a second, verbose handler can be attached for
// relocation-trace diagnostics without touching call sites.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// LevelTrace sits below slog.LevelDebug for the arch backend's per-
// relocation diagnostics, which are too noisy for the debug level and only
// wanted when debugging the relocation engine itself.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a case-insensitive level name (as read from config or
// the STATICLD_LOG environment variable) to a slog.Level, defaulting to
// Info for anything unrecognized.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
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

// New builds the process-wide logger at the given level, writing to
// stderr with a compact source-free text handler. When trace is true (the
// driver sets it when the resolved log level name, from STATICLD_LOG or the
// config file, is "trace"), a second handler is fanned out alongside the
// normal one so per-relocation trace records from the arch backend reach
// stderr too, without the normal handler having to filter them back out.
func New(level slog.Level, trace bool) *slog.Logger {
	handler := newTextHandler(level)

	if !trace {
		pipeline := slogmulti.Pipe(dropBelow(level)).Handler(handler)
		return slog.New(pipeline)
	}

	traceHandler := newTextHandler(LevelTrace)
	fanout := slogmulti.Fanout(handler, traceHandler)
	return slog.New(fanout)
}

func newTextHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
}

// dropBelow builds a middleware that discards records under level before
// they reach the downstream handler, keeping the fan-out point (where a
// second, file-backed handler would be attached) free of level logic.
func dropBelow(level slog.Level) slogmulti.Middleware {
	return func(next slog.Handler) slog.Handler {
		return &levelFilterHandler{level: level, next: next}
	}
}

type levelFilterHandler struct {
	level slog.Level
	next  slog.Handler
}

func (h *levelFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelFilterHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.next.Handle(ctx, record)
}

func (h *levelFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilterHandler{level: h.level, next: h.next.WithAttrs(attrs)}
}

func (h *levelFilterHandler) WithGroup(name string) slog.Handler {
	return &levelFilterHandler{level: h.level, next: h.next.WithGroup(name)}
}
