package futures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpLogger_NeverEnabled(t *testing.T) {
	l := NewNoOpLogger()
	assert.False(t, l.IsEnabled(LevelDebug))
	assert.False(t, l.IsEnabled(LevelError))
	assert.NotPanics(t, func() { l.Log(LogEntry{Message: "ignored"}) })
}

func TestDefaultLogger_RespectsLevel(t *testing.T) {
	l := NewDefaultLogger(LevelWarn)
	assert.False(t, l.IsEnabled(LevelDebug))
	assert.False(t, l.IsEnabled(LevelInfo))
	assert.True(t, l.IsEnabled(LevelWarn))
	assert.True(t, l.IsEnabled(LevelError))

	l.SetLevel(LevelDebug)
	assert.True(t, l.IsEnabled(LevelDebug))
}

func TestLogEntryBuilder_BuildsExpectedEntry(t *testing.T) {
	entry := NewLogEntry(LevelInfo, "future", "hello").
		Field("k", "v").
		Build()

	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "future", entry.Category)
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "v", entry.Context["k"])
}

func TestSetStructuredLogger_ChangesGlobalDefault(t *testing.T) {
	prior := getGlobalLogger()
	defer SetStructuredLogger(prior)

	custom := NewDefaultLogger(LevelError)
	SetStructuredLogger(custom)
	require.Same(t, custom, getGlobalLogger())
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}
