package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/config"
)

func TestNew_LevelFallsBackToInfo(t *testing.T) {
	for _, raw := range []string{"", "verbose"} {
		log := New(&config.Config{LogLevel: raw, LogFormat: "json"})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel(), raw)
	}
	assert.Equal(t, zerolog.DebugLevel, New(&config.Config{LogLevel: "DEBUG"}).GetLevel())
}

func TestOutput_JSONWritesRawLines(t *testing.T) {
	var buf bytes.Buffer
	jsonLog := zerolog.New(output("JSON", &buf))
	jsonLog.Info().Str("user", "[REDACTED]").Msg("dispatched")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatched", line["message"])

	_, isConsole := output("console", &buf).(zerolog.ConsoleWriter)
	assert.True(t, isConsole)
}
