package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	t.Setenv(LevelEnv, "")

	assert.Equal(t, zapcore.InfoLevel, Level(Options{}))
	assert.Equal(t, zapcore.DebugLevel, Level(Options{Verbose: true}))
	assert.Equal(t, zapcore.WarnLevel, Level(Options{Quiet: true}))
	assert.Equal(t, zapcore.WarnLevel, Level(Options{Quiet: true, Verbose: true}))
}

func TestLevelEnvOverride(t *testing.T) {
	t.Setenv(LevelEnv, "error")
	assert.Equal(t, zapcore.ErrorLevel, Level(Options{Verbose: true}))

	t.Setenv(LevelEnv, "not-a-level")
	assert.Equal(t, zapcore.DebugLevel, Level(Options{Verbose: true}))
}

func TestNewWritesToWriter(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer

	logger := New(Options{Writer: &buf})
	logger.Sugar().Debugw("hidden", "k", "v")
	logger.Sugar().Infow("visible", "kid", "k1")
	_ = logger.Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "k1")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
