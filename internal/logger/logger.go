// Package logger wraps zap with the leveled, key-value calling convention
// used across this service's domain and infrastructure code.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin facade over zap.SugaredLogger. Call sites that need
// structured fields directly can drop to the underlying *zap.Logger via Zap().
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error"),
// tuned for "production" (JSON, ISO8601 timestamps) or any other value
// (console encoding), optionally teeing error-and-above output to errorFile.
func New(level string, environment string, errorFile ...string) *Logger {
	zapLevel := parseLevel(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if environment == "production" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapLevel),
	}

	if len(errorFile) > 0 && errorFile[0] != "" {
		f, err := os.OpenFile(errorFile[0], os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), zapcore.ErrorLevel))
		}
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: base.Sugar(), base: base}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.sugar.Fatalw(msg, kv...) }

// With returns a Logger with the given key-value pairs attached to every
// subsequent log line, e.g. logger.With("ticker", "zano").
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(kv...), base: l.base}
}

// Zap exposes the underlying structured logger for call sites that prefer
// zap.Field constructors over key-value pairs.
func (l *Logger) Zap() *zap.Logger { return l.base }

// Sync flushes any buffered log entries. Call on shutdown.
func (l *Logger) Sync() error { return l.base.Sync() }
