// Package logging builds the zap logger every other package threads
// through as its diagnostic sink, following the structured-logging
// convention used by invaderskywalker-astra_go and Ruscigno-CryptoPulse.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger.
type Options struct {
	Level   string // debug, info, warn, error
	Verbose bool
}

// New builds a *zap.SugaredLogger writing human-readable console output,
// matching the teacher's stderr-oriented CLI diagnostics but structured.
func New(opts Options) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, err
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "" // CLI output stays terse; timestamps add noise for a short-lived run
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
