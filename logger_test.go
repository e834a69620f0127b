package dgbatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf)).With("component", "batch")

	logger.Warn("Package failed", "error", errors.New("boom"), "package", 2, "batch", "users")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "Package failed", lines[0]["message"])
	assert.Equal(t, "batch", lines[0]["component"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, float64(2), lines[0]["package"])
	assert.Equal(t, "users", lines[0]["batch"])
}

func TestZerologLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("hidden")
	logger.Info("shown")
	logger.Error("also shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestManager_LogsBatchLifecycle(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = NewZerologLogger(zerolog.New(&buf))
	manager := New(cfg)

	manager.logFinished("users", "run-1", StatusPartialFailure, 4, 1, 0)
	manager.logFinished("users", "run-2", StatusCompleted, 4, 0, 0)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "partial_failure", lines[0]["status"])
	assert.Equal(t, "info", lines[1]["level"])
	assert.Equal(t, "batch", lines[1]["component"])
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		l := NopLogger().With("a", 1)
		l.Info("nothing")
	})
}
