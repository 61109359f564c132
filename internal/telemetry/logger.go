// Package telemetry builds the process-wide zap logger and carries it
// through a context.Context, in the idiom of the logger package this
// module was grounded on.
package telemetry

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger's format and verbosity.
type Config struct {
	Format       string        `toml:"format"`
	Level        zapcore.Level `toml:"level"`
	SuppressLogo bool          `toml:"suppress-logo"`
}

// NewConfig returns a Config with the package defaults.
func NewConfig() Config {
	return Config{Format: "auto", Level: zapcore.InfoLevel}
}

// New builds a *zap.Logger writing to w. "json" selects the JSON
// encoder; anything else (including "auto") falls back to a console
// encoder with RFC3339 timestamps and human-readable durations.
func New(w io.Writer, cfg Config) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}
	encoderCfg.EncodeDuration = func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(d.String())
	}

	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		cfg.Level,
	))
}

type loggerContextKey struct{}

// NewContext returns a context carrying log.
func NewContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext returns the logger stored by NewContext, or a no-op logger
// if ctx carries none.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}
