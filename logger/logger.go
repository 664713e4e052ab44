package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper around zap that provides the three log
// levels used throughout the codebase.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field re-exports zap's structured field so callers never import zap
// directly.
type Field = zap.Field

var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Time    = zap.Time
	Err     = zap.Error
)

// zapLogger implements Logger using a SugaredLogger internally.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.sugar.Infow(msg, fieldsToArgs(fields)...)
}
func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.sugar.Warnw(msg, fieldsToArgs(fields)...)
}
func (l *zapLogger) Error(msg string, fields ...Field) {
	l.sugar.Errorw(msg, fieldsToArgs(fields)...)
}

// NewZapLogger creates a production-ready logger (JSON encoding, level INFO).
func NewZapLogger() (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// Nop returns a logger that drops everything. The backtest hot path
// uses it to keep replay output clean.
func Nop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// Helper – converts a Field slice to SugaredLogger key/value args.
func fieldsToArgs(fields []Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Interface)
	}
	return out
}
