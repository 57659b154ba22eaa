package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogTo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogTo(logger, Fields{Service: "order-service", OrderID: "o1", Step: "place_order", Status: "created", DurationMS: 12})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "place_order", line["msg"])
	assert.Equal(t, "order-service", line["service"])
	assert.Equal(t, "o1", line["order_id"])
	assert.Equal(t, "created", line["status"])
	assert.Equal(t, 12.0, line["duration_ms"])
	assert.NotContains(t, line, "txid")
	assert.NotContains(t, line, "count")
}

func TestLogTo_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogTo(logger, Fields{Service: "payment-service", Step: "charge", Message: "gateway failed", Err: errors.New("timeout")})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "gateway failed", line["msg"])
	assert.Equal(t, "timeout", line["error"])
}

func TestSetupAndParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))

	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(&buf, "warn")
	Log(Fields{Service: "s", Step: "quiet"})
	assert.Zero(t, buf.Len())
	Log(Fields{Service: "s", Step: "loud", Err: errors.New("x")})
	assert.Contains(t, buf.String(), `"msg":"loud"`)
}
