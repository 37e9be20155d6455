package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NLP_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Colored)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, 8, cfg.Pipeline.FetchWidth)
	assert.Equal(t, 1, cfg.Pipeline.ExtractWidth, "narrow extraction is the default profile")
	assert.Equal(t, 20, cfg.Pipeline.FetchTimeoutSeconds)
	assert.Equal(t, 90, cfg.Pipeline.ExtractTimeoutSeconds)
	assert.Zero(t, cfg.Pipeline.SessionTimeoutSeconds, "no aggregate deadline unless configured")

	assert.InDelta(t, 0.3, cfg.Ranker.Threshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.Ranker.Weights.Text, 1e-9)
	assert.InDelta(t, 0.1, cfg.Ranker.Weights.Date, 1e-9)

	assert.Equal(t, "gpt-4o-mini", cfg.NLP.Model)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, "sources.yaml", cfg.Sources.Registry)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("pipeline.extract_width", 3)
	viper.Set("ranker.threshold", 0.5)
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.ExtractWidth)
	assert.InDelta(t, 0.5, cfg.Ranker.Threshold, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NLP_BASE_URL", "http://localhost:11434")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.NLP.APIKey)
	assert.Equal(t, "http://localhost:11434", cfg.NLP.BaseURL)
}

func TestConfiguredKeyBeatsEnv(t *testing.T) {
	viper.Reset()
	viper.Set("nlp.api_key", "from-file")
	defer viper.Reset()
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.NLP.APIKey)
}

func TestPipelineTimeoutGetters(t *testing.T) {
	c := PipelineConfig{FetchTimeoutSeconds: 20, ExtractTimeoutSeconds: 90}
	assert.Equal(t, "20s", c.FetchTimeout().String())
	assert.Equal(t, "1m30s", c.ExtractTimeout().String())
	assert.Zero(t, c.SessionTimeout())
}
