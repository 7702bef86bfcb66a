// Package gclog wraps zap the way a runtime subsystem wraps its print
// sink: a thin, always-present logger that is a no-op unless the
// embedder supplies one, never a dependency the hot path can fail on.
package gclog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Logger is the structured sink copygc components log through. It is
// never nil: New(nil) returns a no-op logger.
type Logger struct {
	z *zap.Logger
}

// New wraps z, or returns a no-op Logger if z is nil.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Info(msg, fields...)
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Debug(msg, fields...)
}

// Fatal logs msg at error level, flushes, and terminates the process.
// It is the only abort path in the package: a broken structural
// invariant inside the collector must either succeed or abort, never
// propagate as a recoverable Go error.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	if l != nil {
		l.z.Error(msg, fields...)
		_ = l.z.Sync()
	} else {
		fmt.Fprintln(os.Stderr, "copygc: fatal:", msg)
	}
	os.Exit(2)
}
