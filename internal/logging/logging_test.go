package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.Error(t, err)
}

func TestNewWritesJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "bot.log")

	log, err := New("info", file)
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("Session created", zap.String("guild", "g1"))
	_ = log.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Session created", entry["msg"])
	assert.Equal(t, "g1", entry["guild"])
	assert.NotContains(t, string(data), "hidden")
}
