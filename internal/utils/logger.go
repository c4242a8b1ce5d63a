package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a key/value logger over zap's sugared logger.
type Logger struct {
	s *zap.SugaredLogger
}

func NewLogger() *Logger {
	l, err := NewLoggerAt("info")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return l
}

// NewLoggerAt builds a production JSON logger at the given level name.
func NewLoggerAt(level string) (*Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

func NewLoggerFrom(z *zap.Logger) *Logger { return &Logger{s: z.Sugar()} }

func NewNopLogger() *Logger { return &Logger{s: zap.NewNop().Sugar()} }

func (lg *Logger) Debug(msg string, kv ...any) { lg.s.Debugw(msg, kv...) }
func (lg *Logger) Info(msg string, kv ...any)  { lg.s.Infow(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.s.Warnw(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.s.Errorw(msg, kv...) }

// With returns a child logger that always carries kv.
func (lg *Logger) With(kv ...any) *Logger { return &Logger{s: lg.s.With(kv...)} }

func (lg *Logger) Sync() error { return lg.s.Sync() }
