package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("kind", "invalid_image").Msg("kept")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "invalid_image", line["kind"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, newLogger(&bytes.Buffer{}, "production", "chatty").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, newLogger(&bytes.Buffer{}, "development", "").GetLevel())
}

func TestSetupTracingExporters(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "none"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = SetupTracing(context.Background(), TraceConfig{Exporter: "zipkin"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewExporter(t *testing.T) {
	exp, err := newExporter(context.Background(), "stdout", TraceConfig{})
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))

	_, err = newExporter(context.Background(), "otlp", TraceConfig{OTLPEndpoint: " "})
	assert.ErrorContains(t, err, "requires endpoint")
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 0.25, sampleRatio(0.25))
	assert.Equal(t, 0.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(-0.5))
	assert.Equal(t, 1.0, sampleRatio(3))
}
