package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "warn", "json"))
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.ErrorIs(t, SetupLogger(&buf, "info", "xml"), ErrInvalidConfig)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, LoggerFrom(ctx))
	assert.NotNil(t, LoggerFrom(context.Background()))
	assert.Same(t, logger, OrDefault(logger))

	LogInfo(ctx, "spool handled", Fields{"messages": 2})
	LogDebug(ctx, "message ingested", Fields{"outcome": "queued"})
	LogError(ctx, errors.New("disk full"), "move failed", Fields{"path": "a.json"})

	out := buf.String()
	assert.Contains(t, out, "messages=2")
	assert.Contains(t, out, "outcome=queued")
	assert.Contains(t, out, "error=\"disk full\"")
	assert.Contains(t, out, "path=a.json")
}
