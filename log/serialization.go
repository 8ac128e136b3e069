package log

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// appendAttr appends attr to fields. Empty attributes are dropped and
// groups with an empty key are inlined, as slog requires of handlers.
func appendAttr(fields []zap.Field, attr slog.Attr) []zap.Field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	if attr.Value.Kind() == slog.KindGroup && attr.Key == "" {
		for _, a := range attr.Value.Group() {
			fields = appendAttr(fields, a)
		}
		return fields
	}
	return append(fields, toZapField(attr))
}

// toZapField converts a resolved slog.Attr to a zap.Field.
func toZapField(attr slog.Attr) zap.Field {
	v := attr.Value
	switch v.Kind() {
	case slog.KindString:
		return zap.String(attr.Key, v.String())
	case slog.KindInt64:
		return zap.Int64(attr.Key, v.Int64())
	case slog.KindUint64:
		return zap.Uint64(attr.Key, v.Uint64())
	case slog.KindBool:
		return zap.Bool(attr.Key, v.Bool())
	case slog.KindFloat64:
		return zap.Float64(attr.Key, v.Float64())
	case slog.KindTime:
		return zap.Time(attr.Key, v.Time())
	case slog.KindDuration:
		return zap.Duration(attr.Key, v.Duration())
	case slog.KindGroup:
		return zap.Object(attr.Key, group(v.Group()))
	default:
		if err, ok := v.Any().(error); ok {
			return zap.NamedError(attr.Key, err)
		}
		return zap.Any(attr.Key, v.Any())
	}
}

// group marshals a slog group as a nested zap object.
type group []slog.Attr

func (g group) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	var fields []zap.Field
	for _, attr := range g {
		fields = appendAttr(fields, attr)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	return nil
}
