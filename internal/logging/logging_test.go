package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Int("sections", 3).Msg("kept")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "echograph", line["service"])
	assert.EqualValues(t, 3, line["sections"])
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "loud").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewWithWriter(&bytes.Buffer{}, " DEBUG ").GetLevel())
}

func TestTemporalLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTemporalLogger(NewWithWriter(&buf, "debug"))
	tl.Warn("activity failed", "ActivityType", "EmbedChunksActivity", "Attempt", 2, "dangling")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "temporal", line["component"])
	assert.Equal(t, "EmbedChunksActivity", line["ActivityType"])
	assert.EqualValues(t, 2, line["Attempt"])
	assert.Equal(t, "dangling", line["extra"])
}
