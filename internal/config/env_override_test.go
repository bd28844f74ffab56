package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("ANTHROPIC_API_KEY sets provider", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := &Config{LLM: LLMConfig{Provider: "initial"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	})

	t.Run("Precedence: GROQ overrides the rest", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GROQ_API_KEY", "gq-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gq-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	})

	t.Run("LLM_PROVIDER picks among available keys", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("GROQ_API_KEY", "gq-key")
		t.Setenv("LLM_PROVIDER", "Anthropic")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
	})

	t.Run("PAGEGEN_LLM_PROVIDER beats LLM_PROVIDER", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "g-key")
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("PAGEGEN_LLM_PROVIDER", "openai")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
	})

	t.Run("GROQ_MODEL only applies to groq", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("GROQ_MODEL", "llama-3.3-70b-versatile")

		cfg := &Config{LLM: LLMConfig{Provider: ProviderAnthropic, Model: "m"}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "m", cfg.LLM.Model)

		cfg.LLM.Provider = ProviderGroq
		cfg.applyEnvOverrides()
		assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	})
}

func TestEnvOverrides_Numeric(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "4096")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("PAGEGEN_PORT", "9001")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_IgnoresGarbage(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("PAGEGEN_PORT", "http")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 8192, cfg.LLM.MaxTokens)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestEnvOverrides_Bedrock(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_PROVIDER", "Bedrock")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("AWS_PROFILE", "pagegen")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, ProviderBedrock, cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, "eu-west-1", cfg.LLM.Region)
	assert.Equal(t, "pagegen", cfg.LLM.Profile)
	assert.False(t, cfg.LLM.NeedsAPIKey())
	assert.NoError(t, cfg.Validate())
}
