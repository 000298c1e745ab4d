package logging

import (
	"go.uber.org/zap"
)

// Zap adapts a zap.Logger to the key/value Logger interface.
type Zap struct{ L *zap.Logger }

func (z Zap) Debug(msg string, args ...any) { z.L.Debug(msg, zapFields(args)...) }
func (z Zap) Info(msg string, args ...any)  { z.L.Info(msg, zapFields(args)...) }
func (z Zap) Warn(msg string, args ...any)  { z.L.Warn(msg, zapFields(args)...) }
func (z Zap) Error(msg string, args ...any) { z.L.Error(msg, zapFields(args)...) }

func zapFields(args []any) []zap.Field {
	if len(args) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, (len(args)+1)/2)
	forEachPair(args, func(k string, v any) {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			return
		}
		out = append(out, zap.Any(k, v))
	})
	return out
}

const badKey = "!BADKEY"

// forEachPair walks slog-style alternating key/value args. A value
// without a string key is reported under badKey, as slog does.
func forEachPair(args []any, fn func(k string, v any)) {
	for i := 0; i < len(args); {
		k, ok := args[i].(string)
		if !ok {
			fn(badKey, args[i])
			i++
			continue
		}
		if i+1 >= len(args) {
			fn(badKey, k)
			return
		}
		fn(k, args[i+1])
		i += 2
	}
}
