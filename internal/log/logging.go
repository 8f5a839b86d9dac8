// Package log builds the configured slog.Logger for the bridge.
//
// Without a log file, records below Error go to stdout and Error and above
// to stderr so shell redirection can separate them. With a log file, the
// console copy moves entirely to stderr and the file receives everything at
// the configured level.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LevelTrace sits below Debug and enables raw report dumps.
const LevelTrace slog.Level = -8

// ParseLevel maps a config string to a level; unknown strings mean Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// tee fans a record out to every handler that accepts its level.
type tee struct {
	hs []slog.Handler
}

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t.hs {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r)
		}
	}
	return nil
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.hs))
	for i, h := range t.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return tee{hs: out}
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.hs))
	for i, h := range t.hs {
		out[i] = h.WithGroup(name)
	}
	return tee{hs: out}
}

// band restricts a handler to a half-open level range.
type band struct {
	min, max slog.Level // max is exclusive; use maxOpen for no upper bound
	h        slog.Handler
}

const maxOpen = slog.Level(1 << 30)

func (b band) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= b.min && level < b.max && b.h.Enabled(ctx, level)
}

func (b band) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < b.min || r.Level >= b.max {
		return nil
	}
	return b.h.Handle(ctx, r)
}

func (b band) WithAttrs(attrs []slog.Attr) slog.Handler {
	return band{min: b.min, max: b.max, h: b.h.WithAttrs(attrs)}
}

func (b band) WithGroup(name string) slog.Handler {
	return band{min: b.min, max: b.max, h: b.h.WithGroup(name)}
}

// Setup builds the logger. The returned closers own any opened log files.
func Setup(levelName, file string) (*slog.Logger, []io.Closer, error) {
	level := ParseLevel(levelName)
	var handlers []slog.Handler
	var closers []io.Closer

	if file == "" {
		handlers = append(handlers,
			band{min: level, max: slog.LevelError,
				h: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})},
			band{min: slog.LevelError, max: maxOpen,
				h: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})},
		)
	} else {
		handlers = append(handlers,
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		f, err := os.OpenFile(file, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, f)
		handlers = append(handlers,
			slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(tee{hs: handlers}), closers, nil
}
