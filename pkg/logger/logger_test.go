package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLevelStrings(t *testing.T) {
	assert.Equal(t, "success", SuccessLevel.String())
	assert.Equal(t, "SUCCESS", SuccessLevel.CapitalString())
	assert.Equal(t, "fail", FailLevel.String())
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestLevelToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, SuccessLevel.ToZapLevel())
	assert.Equal(t, zapcore.DebugLevel, DebugLevel.ToZapLevel())
	assert.Equal(t, zapcore.FatalLevel, FailLevel.ToZapLevel())
}

func TestNewLogger(t *testing.T) {
	opts := DefaultOptions()
	opts.ColorConsole = false
	l, err := NewLogger(opts)
	assert.NoError(t, err)
	assert.NotNil(t, l)

	child := l.With("component", "database")
	assert.NotNil(t, child)
	child.Infof("state transition %s -> %s", "NotStarted", "Installing")
}

func TestGlobalLoggerInitialized(t *testing.T) {
	Init(DefaultOptions())
	assert.NotNil(t, Get())
}
