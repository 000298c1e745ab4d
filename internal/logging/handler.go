// Package logging bridges the Logger interface accepted by the public API
// with log/slog, zap and logrus.
package logging

import (
	"context"
	"log/slog"

	"github.com/LavishGent/abcache/internal/types"
)

// New returns a slog.Logger writing through l, or slog.Default when l is nil.
func New(l types.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	if s, ok := l.(*slog.Logger); ok {
		return s
	}
	return slog.New(Handler{logger: l})
}

// Handler is a slog.Handler that forwards records to a types.Logger.
//
//nolint:govet // Simple adapter struct - alignment optimization minimal
type Handler struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string // current group prefix from WithGroup calls
}

func NewHandler(l types.Logger) Handler {
	return Handler{logger: l}
}

// Enabled implements slog.Handler. Level filtering is left to the target.
func (h Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires passing Record by value
func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(h.attrs)+r.NumAttrs())*2)

	for _, attr := range h.attrs {
		args = append(args, attr.Key, attr.Value.Resolve().Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, h.key(attr.Key), attr.Value.Resolve().Any())
		return true
	})

	switch {
	case r.Level < slog.LevelInfo:
		h.logger.Debug(r.Message, args...)
	case r.Level < slog.LevelWarn:
		h.logger.Info(r.Message, args...)
	case r.Level < slog.LevelError:
		h.logger.Warn(r.Message, args...)
	default:
		h.logger.Error(r.Message, args...)
	}
	return nil
}

func (h Handler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// WithAttrs implements slog.Handler.
func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, attr := range attrs {
		attr.Key = h.key(attr.Key)
		newAttrs = append(newAttrs, attr)
	}
	return Handler{
		logger: h.logger,
		attrs:  newAttrs,
		group:  h.group,
	}
}

// WithGroup implements slog.Handler.
func (h Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return Handler{
		logger: h.logger,
		attrs:  h.attrs,
		group:  h.key(name),
	}
}

var _ slog.Handler = Handler{}
