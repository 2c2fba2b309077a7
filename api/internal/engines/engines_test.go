package engines

import (
	"testing"
	"time"

	"leaf-doctor/api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStubOnly(t *testing.T) {
	m, err := Build(&config.Config{DefaultEngine: "stub", StubLatency: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, []string{"stub"}, m.Names())
	assert.Equal(t, "stub", m.Get(1).Name())
}

func TestBuildRegistersConfiguredEngines(t *testing.T) {
	m, err := Build(&config.Config{
		DefaultEngine: "gpt",
		GeminiAPIKey:  "g",
		GeminiModel:   "gemini-2.5-flash",
		OpenAIAPIKey:  "o",
		OpenAIModel:   "gpt-4o-mini",
		RemoteURL:     "http://proxy:8000/",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini", "gpt", "remote", "stub"}, m.Names())
	assert.Equal(t, "gpt", m.Get(42).Name())

	e, err := m.Lookup("openai")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", e.GetModel())
}

func TestBuildUnknownDefault(t *testing.T) {
	_, err := Build(&config.Config{DefaultEngine: "gemini"})
	assert.ErrorContains(t, err, `"gemini"`)
}
