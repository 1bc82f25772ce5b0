package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
)

func TestParseLevel(t *testing.T) {
	a := assert.New(t)

	a.Equal(slog.LevelDebug, ParseLevel("DEBUG"))
	a.Equal(slog.LevelWarn, ParseLevel("warning"))
	a.Equal(slog.LevelError, ParseLevel("error"))
	a.Equal(slog.LevelInfo, ParseLevel(""))
	a.Equal(slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewLoggerCarriesContextAttributes(t *testing.T) {
	a := assert.New(t)
	var buf bytes.Buffer

	logger := NewLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})
	ctx := slogctx.Append(context.Background(), "device-id", "GMG1234")

	logger.DebugContext(ctx, "hidden")
	logger.InfoContext(ctx, "Refreshed grill", "state", "on")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	a.Equal("Refreshed grill", record["msg"])
	a.Equal("GMG1234", record["device-id"])
	a.Equal("on", record["state"])
}
