package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, 60*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.NotEmpty(t, cfg.Analysis.DefaultPrompt)
	assert.False(t, cfg.CacheEnable)
	assert.Equal(t, 10*time.Minute, cfg.RedisConfig.TTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("MODEL_TIMEOUT", "5s")
	t.Setenv("CACHE_ENABLE", "true")
	t.Setenv("SERVER_ALLOWED_ORIGIN", "https://vick.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, 5*time.Second, cfg.Model.Timeout)
	assert.True(t, cfg.CacheEnable)
	assert.Equal(t, "https://vick.example", cfg.Server.AllowedOrigin)
}

func TestLoadEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("GEMINI_MODEL=gemini-from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GEMINI_MODEL") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "gemini-from-file", cfg.Gemini.Model)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("provider", func(t *testing.T) {
		t.Setenv("MODEL_PROVIDER", "claude")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "MODEL_PROVIDER")
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("MODEL_TIMEOUT", "soon")
		_, err := Load(missing)
		assert.Error(t, err)
	})
}

func TestGeminiKeyFallback(t *testing.T) {
	assert.Equal(t, "primary", GeminiConfig{APIKey: "primary", LegacyAPIKey: "legacy"}.Key())
	assert.Equal(t, "legacy", GeminiConfig{LegacyAPIKey: "legacy"}.Key())
	assert.Empty(t, GeminiConfig{}.Key())
}
