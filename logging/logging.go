// Package logging builds the application logger. The TUI owns the
// terminal, so log output goes to a file rather than stderr.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing JSON lines to the given path. With debug
// disabled, only warnings and errors are recorded.
func New(path string, debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	return config.Build()
}

// Nop returns a logger that discards everything, for callers that have no
// log file configured.
func Nop() *zap.Logger {
	return zap.NewNop()
}
