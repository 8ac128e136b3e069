// Package testutil provides common test utilities and assertions for bridge tests.
package testutil

import (
	"encoding/json"
	"log/slog"
	"testing"

	corallog "github.com/coral-dev/coral-go/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// AssertJSONEqual compares two JSON documents for equality, ignoring formatting.
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var expectedJSON, actualJSON any
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// ObservedLogger returns a debug-level slog.Logger whose records are kept
// in memory for assertions.
func ObservedLogger(t *testing.T) (*slog.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := corallog.New(
		corallog.WithZapLogger(zap.New(core)),
		corallog.WithLevel(slog.LevelDebug),
	)
	return logger, logs
}

// AssertLogged asserts that exactly n records with message msg were written.
func AssertLogged(t *testing.T, logs *observer.ObservedLogs, msg string, n int) {
	t.Helper()
	assert.Equal(t, n, logs.FilterMessage(msg).Len(), "records with message %q", msg)
}
