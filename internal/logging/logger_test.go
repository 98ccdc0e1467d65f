package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestWithFieldReturnsNewLoggerWithSameComponent(t *testing.T) {
	logger := NewLogger("stream")
	require.Equal(t, "stream", logger.component)

	scoped := logger.WithField("camera_id", "cam-1")
	require.Equal(t, "stream", scoped.component)
	require.NotSame(t, logger, scoped)
}

func TestWithCorrelationIDIsRetrievableFromContext(t *testing.T) {
	ctx := WithCorrelationID(t.Context(), "corr-123")
	require.Equal(t, "corr-123", GetCorrelationIDFromContext(ctx))
}

func TestGetCorrelationIDFromContextEmptyWhenUnset(t *testing.T) {
	require.Empty(t, GetCorrelationIDFromContext(t.Context()))
}

func TestGenerateCorrelationIDIsUnique(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestJSONFormatterProducesParseableOutput(t *testing.T) {
	logger := NewLogger("test")
	var buf bytes.Buffer
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	logger.Info("stream started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "stream started", entry["msg"])
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	logger := NewLogger("test")
	var buf bytes.Buffer
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.WarnLevel)

	logger.Info("should be filtered out")
	require.Empty(t, buf.Bytes())

	logger.Warn("should appear")
	require.NotEmpty(t, buf.Bytes())
}
