package config

import "time"

// Config holds all configuration for the application. It is constructed
// once at process start and passed into component constructors; no
// component reads ambient global state.
type Config struct {
	// APIPort is the port the API server listens on
	APIPort int

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string

	// ProvidersConfigPath is the path to the YAML file describing tool providers
	ProvidersConfigPath string

	// WatchProviders enables hot-reloading of the providers file
	WatchProviders bool

	// KnowledgeGraphPath is the path to the component topology YAML file.
	// Optional; the correlation engine works without it.
	KnowledgeGraphPath string

	// LLM holds the reasoning service connection settings
	LLM LLMConfig

	// MaxIterations bounds the reasoning/tool-execution loop per investigation
	MaxIterations int

	// ToolTimeout bounds every single tool invocation
	ToolTimeout time.Duration

	// ReasoningTimeout bounds every single reasoning call
	ReasoningTimeout time.Duration

	// MaxConcurrentInvestigations bounds in-flight investigations
	MaxConcurrentInvestigations int
}

// LLMConfig holds connection settings for the text-completion service.
type LLMConfig struct {
	// Provider selects the backend: "anthropic" or "gemini"
	Provider string

	// APIKey authenticates against the provider
	APIKey string

	// Model is the model identifier (e.g., "claude-sonnet-4-5-20250929")
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("APIPort must be between 1 and 65535")
	}

	if c.ProvidersConfigPath == "" {
		return NewConfigError("ProvidersConfigPath must not be empty")
	}

	if c.MaxIterations < 1 {
		return NewConfigError("MaxIterations must be at least 1")
	}

	if c.MaxIterations > 50 {
		return NewConfigError("MaxIterations must be at most 50")
	}

	if c.ToolTimeout < time.Second {
		return NewConfigError("ToolTimeout must be at least 1s")
	}

	if c.ReasoningTimeout < time.Second {
		return NewConfigError("ReasoningTimeout must be at least 1s")
	}

	if c.MaxConcurrentInvestigations < 1 {
		return NewConfigError("MaxConcurrentInvestigations must be at least 1")
	}

	switch c.LLM.Provider {
	case "anthropic", "gemini", "mock":
	default:
		return NewConfigError("LLM.Provider must be one of: anthropic, gemini, mock")
	}

	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return NewConfigError("LLM.APIKey must be set")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
