// Package logger: общий zap-логгер сервиса и бота.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Logger is the subset of *zap.SugaredLogger used across the module.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// build returns the logger handed to components and a copy with one extra
// caller frame skipped for the package-level helpers below.
func build(core zapcore.Core) (direct, wrapped *zap.SugaredLogger) {
	l := zap.New(core, zap.AddCaller())
	return l.Sugar(), l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

var std, wrapped = build(zapcore.NewCore(
	zapcore.NewConsoleEncoder(encoderConfig),
	zapcore.AddSync(os.Stdout),
	zapLevel,
))

// Default writes console-encoded lines to stdout.
var Default Logger = std

// helper: Default replaced (tests) wins over the skipped copy.
func helper() Logger {
	if l, ok := Default.(*zap.SugaredLogger); ok && l == std {
		return wrapped
	}
	return Default
}

// SetLevel accepts debug|info|warn|error|fatal; anything else means info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		zapLevel.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	case LevelFatal:
		zapLevel.SetLevel(zapcore.FatalLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// Nop discards everything; handy in tests.
func Nop() Logger { return zap.NewNop().Sugar() }

func Debugf(format string, args ...any) { helper().Debugf(format, args...) }
func Infof(format string, args ...any)  { helper().Infof(format, args...) }
func Warnf(format string, args ...any)  { helper().Warnf(format, args...) }
func Errorf(format string, args ...any) { helper().Errorf(format, args...) }
func Fatalf(format string, args ...any) { helper().Fatalf(format, args...) }
