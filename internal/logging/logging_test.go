package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", zap.String("session", "tavern#1"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "tavern#1", entry["session"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New("debug", "console", &buf)
	require.NoError(t, err)

	logger.Debug("window opened", zap.String("window", "w1"))
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "window opened")
}

func TestNewRejectsUnknownValues(t *testing.T) {
	t.Parallel()

	_, err := New("loud", "json", &bytes.Buffer{})
	assert.ErrorContains(t, err, "parse log level")

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsupported log format")
}
