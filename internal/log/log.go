package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
	atomLvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encoding = "json"
)

// ParseLevel maps a config string onto a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, "debug":
		return LevelDebug
	case LevelError, "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// initLogger builds the global zap logger writing to stderr.
func initLogger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		return sugar
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atomLvl
	cfg.Encoding = encoding
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
	sugar = l.Sugar()
	return sugar
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atomLvl.SetLevel(zapcore.DebugLevel)
	case LevelError:
		atomLvl.SetLevel(zapcore.ErrorLevel)
	default:
		atomLvl.SetLevel(zapcore.InfoLevel)
	}
}

// SetFormat switches between "json" (default) and "console" output.
// It must be called before the first log line to take effect.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	if format == "console" || format == "json" {
		encoding = format
	}
}

// Named returns a typed child logger for a component.
func Named(component string) *zap.Logger {
	initLogger()
	return logger.WithOptions(zap.AddCallerSkip(-2)).Named(component)
}

// Sync flushes any buffered entries.
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	s := initLogger()
	kv = pairs(kv)

	switch level {
	case LevelDebug:
		s.Debugw(msg, kv...)
	case LevelError:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

// pairs drops non-string keys and a trailing odd key so zap never sees
// malformed field lists.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
