package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level can be changed at run time to turn debug logging on or off.
var Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Factory hands out named loggers so every component (queue service,
// lock manager, each consumer) logs under its own name.
type Factory struct {
	base *zap.Logger
}

// NewFactory builds the process-wide logger. Console encoding in dev,
// JSON everywhere else.
func NewFactory(env string) *Factory {
	encoding := "json"
	encodeLevel := zapcore.CapitalLevelEncoder
	if env == "dev" {
		encoding = "console"
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg := zap.Config{
		Level:            Level,
		Development:      env == "dev",
		Encoding:         encoding,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	return &Factory{base: zap.Must(cfg.Build())}
}

// Create returns a named sugared logger for one component.
func (f *Factory) Create(name string) *zap.SugaredLogger {
	return f.base.Named(name).Sugar()
}

// Sync flushes buffered log entries. Call on shutdown.
func (f *Factory) Sync() {
	_ = f.base.Sync()
}
