// Package logging builds the zap logger used by gwctl commands.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv overrides the level derived from the verbosity flags.
const LevelEnv = "GWCTL_LOG_LEVEL"

type Options struct {
	Verbose bool
	Quiet   bool
	// Writer defaults to os.Stderr so log lines never mix with command output.
	Writer io.Writer
}

// Level resolves the effective level: quiet wins over verbose, and a valid
// GWCTL_LOG_LEVEL wins over both.
func Level(opts Options) zapcore.Level {
	level := zapcore.InfoLevel
	switch {
	case opts.Quiet:
		level = zapcore.WarnLevel
	case opts.Verbose:
		level = zapcore.DebugLevel
	}
	if raw := strings.TrimSpace(os.Getenv(LevelEnv)); raw != "" {
		var parsed zapcore.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}
	return level
}

// New creates a console logger for interactive use.
func New(opts Options) *zap.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(Level(opts)))
	return zap.New(core)
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
