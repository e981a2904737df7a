package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// parseLevel maps a level name to zap, case-insensitively. Anything
// unrecognised logs at debug.
func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.DebugLevel
	}
	return lvl
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeName = zapcore.FullNameEncoder
	if strings.EqualFold(format, FormatJSON) {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// New builds a logger writing to stdout. Errors carry the caller and a
// stack trace.
func New(level, format string) *Logger {
	core := zapcore.NewCore(newEncoder(format), zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(parseLevel(level)))
	return &Logger{
		SugaredLogger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar(),
	}
}

// Named returns a child logger tagged with the component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}
