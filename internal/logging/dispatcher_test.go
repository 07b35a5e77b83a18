package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("handling action", "action", "undo", "args", 0) }},
		{"info", func(l *DispatcherLogger) { l.Info("handling action", "action", "undo", "args", 0) }},
		{"error", func(l *DispatcherLogger) { l.Error("handling action", "action", "undo", "args", 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
			tt.log(dl)

			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "handling action", entry["message"])
			assert.Equal(t, "undo", entry["action"])
			assert.Equal(t, float64(0), entry["args"])
		})
	}
}

func TestDispatcherLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("action failed", "action", "set-color", "error", errors.New("invalid argument"))

	entry := decode(t, &buf)
	assert.Equal(t, "invalid argument", entry[zerolog.ErrorFieldName])
	assert.Equal(t, "set-color", entry["action"])
}

func TestDispatcherLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "two", "dangling"})
	assert.Equal(t, map[string]any{"a": 1, "2": "two"}, fields)
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerolog(&buf, "warn", false)

	zl.Info().Msg("hidden")
	zl.Warn().Str("path", "doc.json").Msg("slow save")

	entry := decode(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "doc.json", entry["path"])
	assert.Contains(t, entry, "time")
}

func TestNewZerolog_NoWriters(t *testing.T) {
	zl := NewZerolog(nil, "info", false)
	assert.Equal(t, zerolog.Disabled, zl.GetLevel())
}
