package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	logger.WithComponent("plugins").With("plugin", "folio:markdown").
		Warn(context.Background(), errors.New("boom"), "hook failed", "hook", "resolvePage")

	out := buf.String()
	assert.Contains(t, out, "hook failed")
	assert.Contains(t, out, "component=plugins")
	assert.Contains(t, out, "plugin=folio:markdown")
	assert.Contains(t, out, "hook=resolvePage")
	assert.Contains(t, out, "error=boom")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "debug message")
	logger.Info(context.Background(), "info message")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "error message")
	assert.Contains(t, buf.String(), "error message")
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Info(context.Background(), "pages resolved", "count", 3)

	assert.Contains(t, buf.String(), `"msg":"pages resolved"`)
	assert.Contains(t, buf.String(), `"count":3`)
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "ignored")
		logger.With("a", 1).WithComponent("c").Info(context.Background(), "ignored")
	})
}
