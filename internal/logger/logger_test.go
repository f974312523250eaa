package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testLogConfig struct {
	level, output, file string
}

func (c testLogConfig) GetLevel() string  { return c.level }
func (c testLogConfig) GetOutput() string { return c.output }
func (c testLogConfig) GetFile() string   { return c.file }

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"warn":    WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestPackageFunctionsUseDefaultLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := defaultLogger
	t.Cleanup(func() { defaultLogger = prev })
	SetDefaultLogger(NewWithCore(core))

	Info("campaign %d refreshed", 3)
	Warn("wallet %s", "missing")
	Debug("noise")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "campaign 3 refreshed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "wallet missing", entries[1].Message)
}

func TestSetupWithFileOutput(t *testing.T) {
	prev := defaultLogger
	t.Cleanup(func() { defaultLogger = prev })

	file := filepath.Join(t.TempDir(), "cfc.log")
	require.NoError(t, Setup(testLogConfig{level: "info", output: "file", file: file}))
	Info("written to %s", file)
	Sync()
	assert.FileExists(t, file)
}

func TestNewWithRotationRequiresPath(t *testing.T) {
	_, err := NewWithRotation(INFO, RotationConfig{})
	assert.Error(t, err)
}
