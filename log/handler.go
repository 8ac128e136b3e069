// Package log provides a slog.Handler backed by a zap logger.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapHandler implements slog.Handler by writing records to a zap.Logger.
type ZapHandler struct {
	logger *zap.Logger
	opts   handlerConfig
}

// HandlerOption configures the ZapHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger    *zap.Logger
	level     slog.Leveler
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// A *slog.LevelVar may be passed to change the level at runtime.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file:line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithZapLogger sets the zap logger records are written to.
func WithZapLogger(logger *zap.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithOutput writes records to w with zap's console encoder.
func WithOutput(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = newConsoleLogger(zapcore.AddSync(w))
	}
}

// NewHandler creates a new ZapHandler with the given options. Without a zap
// logger, records are written to stderr with zap's console encoder.
func NewHandler(opts ...HandlerOption) *ZapHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = newConsoleLogger(zapcore.Lock(os.Stderr))
	}
	return &ZapHandler{logger: cfg.logger, opts: cfg}
}

// New returns a slog.Logger over a new ZapHandler.
func New(opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// SetDefault installs a ZapHandler as the slog default.
func SetDefault(opts ...HandlerOption) *slog.Logger {
	logger := New(opts...)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive,
// with optional offsets like "info+2").
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func newConsoleLogger(ws zapcore.WriteSyncer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, ws, zapcore.DebugLevel)
	return zap.New(core)
}

// Enabled reports whether the handler handles records at the given level.
func (h *ZapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level() && h.logger.Core().Enabled(zapLevel(level))
}

// Handle converts the record's attributes to zap fields and writes the entry.
func (h *ZapHandler) Handle(_ context.Context, record slog.Record) error {
	ce := h.logger.Check(zapLevel(record.Level), record.Message)
	if ce == nil {
		return nil
	}
	if !record.Time.IsZero() {
		ce.Time = record.Time
	}

	fields := make([]zap.Field, 0, record.NumAttrs()+1)
	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := frames.Next()
		fields = append(fields, zap.String(slog.SourceKey, fmt.Sprintf("%s:%d", f.File, f.Line)))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, attr)
		return true
	})

	ce.Write(fields...)
	return nil
}

// WithAttrs returns a new ZapHandler that includes the given attributes.
func (h *ZapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		fields = appendAttr(fields, attr)
	}
	return &ZapHandler{logger: h.logger.With(fields...), opts: h.opts}
}

// WithGroup returns a new ZapHandler that nests later attributes under name.
func (h *ZapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ZapHandler{logger: h.logger.With(zap.Namespace(name)), opts: h.opts}
}

// zapLevel maps slog levels onto zap levels.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
