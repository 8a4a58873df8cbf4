package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, err := New(config.Logging{Level: "warn", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", zap.Int64("subscriber_id", 7))
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), `"msg":"kept"`)
	assert.Contains(t, string(b), `"subscriber_id":7`)
	assert.Contains(t, string(b), `"ts":`)
}

func TestNew_LevelFallback(t *testing.T) {
	log, err := New(config.Logging{Level: "verbose", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.WarnLevel))
	assert.True(t, log.Core().Enabled(zap.ErrorLevel))
}
