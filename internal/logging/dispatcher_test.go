package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedDispatcherLogger() (*DispatcherLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	return NewDispatcherLogger(logger), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
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
		{"debug", func(l *DispatcherLogger) { l.Debug("msg", "type", "vessel:control") }},
		{"info", func(l *DispatcherLogger) { l.Info("msg", "type", "vessel:control") }},
		{"warn", func(l *DispatcherLogger) { l.Warn("msg", "type", "vessel:control") }},
		{"error", func(l *DispatcherLogger) { l.Error("msg", "type", "vessel:control") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			dl, buf := newBufferedDispatcherLogger()
			tt.log(dl)

			entry := decodeLine(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "msg", entry["message"])
			assert.Equal(t, "vessel:control", entry["type"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	dl, buf := newBufferedDispatcherLogger()
	dl.Info("odd", "key", "value", "dangling", 42, "n")

	entry := decodeLine(t, buf)
	assert.Equal(t, "value", entry["key"])
	assert.NotContains(t, entry, "n")
}

func TestDispatcherLogger_NonStringKeysSkipped(t *testing.T) {
	dl, buf := newBufferedDispatcherLogger()
	dl.Info("skip", 1, "x", "ok", true)

	entry := decodeLine(t, buf)
	assert.Equal(t, true, entry["ok"])
	assert.NotContains(t, entry, "x")
}

func TestDispatcherLogger_TypedValues(t *testing.T) {
	dl, buf := newBufferedDispatcherLogger()
	dl.Error("failed", "error", errors.New("queue full"), "waited", 1500*time.Millisecond, "attempt", 3)

	entry := decodeLine(t, buf)
	assert.Equal(t, "queue full", entry["error"])
	assert.Equal(t, 1500.0, entry["waited"])
	assert.Equal(t, 3.0, entry["attempt"])
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ dispatcher.Logger = (*DispatcherLogger)(nil)
}
