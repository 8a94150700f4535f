package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLoggerIsNop(t *testing.T) {
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() { Logger.Infow("before init", FieldCount, 1) })
}

func TestSetWithObserver(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	Logger.Infow("repair applied", FieldRule, "sum-to-mean")

	entries := logs.FilterMessage("repair applied").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sum-to-mean", entries[0].ContextMap()[FieldRule])
}

func TestInitializeConsoleAndJSON(t *testing.T) {
	defer Set(nil)
	require.NoError(t, Initialize(false, true))
	assert.False(t, JSONOutput)
	require.NoError(t, Initialize(true, false))
	assert.True(t, JSONOutput)
}
