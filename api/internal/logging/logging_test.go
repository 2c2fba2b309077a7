package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewFallsBackToInfo(t *testing.T) {
	for _, lvl := range []string{"", "verbose"} {
		l, err := New(lvl)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	}

	l, err := New("DEBUG")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestPrintfAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewPrintfAdapter(zap.New(core))

	a.Printf("endpoint %s", "getUpdates")
	a.Println("done")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "endpoint getUpdates", logs.All()[0].Message)
	assert.Equal(t, "done", logs.All()[1].Message)
}
