package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestNewSlog(t *testing.T) {
	logger, _ := newBufferLogger(slog.LevelDebug)

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestNewSlogDefault(t *testing.T) {
	logger := NewSlogDefault()

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestNewSlogText(t *testing.T) {
	logger := NewSlogText(slog.LevelWarn)

	require.NotNil(t, logger)
	require.False(t, logger.logger.Enabled(t.Context(), slog.LevelInfo))
	require.True(t, logger.logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestSlogLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*SlogLogger)
		level string
	}{
		{"debug", func(l *SlogLogger) { l.Debug("a message", "peer_id", "peer-1") }, "DEBUG"},
		{"info", func(l *SlogLogger) { l.Info("a message", "peer_id", "peer-1") }, "INFO"},
		{"warn", func(l *SlogLogger) { l.Warn("a message", "peer_id", "peer-1") }, "WARN"},
		{"error", func(l *SlogLogger) { l.Error("a message", "peer_id", "peer-1") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(slog.LevelDebug)
			tt.log(logger)

			output := buf.String()
			assert.Contains(t, output, "a message")
			assert.Contains(t, output, "peer_id=peer-1")
			assert.Contains(t, output, "level="+tt.level)
		})
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.Debug("filtered out")
	assert.Empty(t, buf.String())

	logger.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}
