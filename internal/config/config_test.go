package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		APIPort:             8080,
		LogLevel:            "info",
		ProvidersConfigPath: "providers.yaml",
		LLM: LLMConfig{
			Provider:  "anthropic",
			APIKey:    "sk-test",
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
		},
		MaxIterations:               8,
		ToolTimeout:                 20 * time.Second,
		ReasoningTimeout:            60 * time.Second,
		MaxConcurrentInvestigations: 10,
	}
}

func TestConfigValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfigValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.APIPort = 0 }},
		{"port too large", func(c *Config) { c.APIPort = 70000 }},
		{"missing providers path", func(c *Config) { c.ProvidersConfigPath = "" }},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"excessive iterations", func(c *Config) { c.MaxIterations = 100 }},
		{"tiny tool timeout", func(c *Config) { c.ToolTimeout = time.Millisecond }},
		{"tiny reasoning timeout", func(c *Config) { c.ReasoningTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentInvestigations = 0 }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "grok" }},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var configErr *ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestConfigValidate_MockProviderNeedsNoKey(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Provider = "mock"
	cfg.LLM.APIKey = ""
	assert.NoError(t, cfg.Validate())
}
