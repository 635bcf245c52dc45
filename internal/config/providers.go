package config

import (
	"fmt"
)

// Transport identifiers for tool providers.
const (
	// TransportStdio launches the provider as a child process and talks
	// line-delimited JSON over its stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP reaches the provider over streamable HTTP at a base URL.
	TransportHTTP = "http"
)

// ProvidersFile represents the top-level structure of the tool provider
// config file.
//
// Example YAML structure:
//
//	schema_version: v1
//	providers:
//	  - name: kubernetes
//	    transport: http
//	    url: "http://k8s-mcp-server:8080/mcp"
//	    headers:
//	      Authorization: "Bearer token"
//	  - name: prometheus
//	    transport: stdio
//	    command: python
//	    args: ["/opt/mcp/prometheus_server.py"]
type ProvidersFile struct {
	// SchemaVersion is the explicit config schema version (e.g., "v1")
	SchemaVersion string `yaml:"schema_version"`

	// Providers is the list of tool providers to connect to
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one external tool provider.
type ProviderConfig struct {
	// Name is the unique provider name (e.g., "kubernetes")
	Name string `yaml:"name"`

	// Transport selects the channel: "stdio" or "http"
	Transport string `yaml:"transport"`

	// Enabled indicates whether this provider should be connected.
	// Disabled providers are skipped during initialization.
	Enabled bool `yaml:"enabled"`

	// URL is the base URL for the http transport
	URL string `yaml:"url,omitempty"`

	// Headers are static headers sent on every http request (e.g. bearer tokens)
	Headers map[string]string `yaml:"headers,omitempty"`

	// Command is the executable for the stdio transport
	Command string `yaml:"command,omitempty"`

	// Args are passed to Command
	Args []string `yaml:"args,omitempty"`

	// Env are extra environment variables for the child process,
	// as KEY=VALUE pairs
	Env []string `yaml:"env,omitempty"`
}

// Validate checks that the ProvidersFile is valid.
// Returns descriptive errors for validation failures.
func (f *ProvidersFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	seenNames := make(map[string]bool)

	for i, provider := range f.Providers {
		if provider.Name == "" {
			return NewConfigError(fmt.Sprintf(
				"provider[%d]: name is required",
				i,
			))
		}

		if seenNames[provider.Name] {
			return NewConfigError(fmt.Sprintf(
				"provider[%d]: duplicate provider name %q",
				i, provider.Name,
			))
		}
		seenNames[provider.Name] = true

		switch provider.Transport {
		case TransportStdio:
			if provider.Command == "" {
				return NewConfigError(fmt.Sprintf(
					"provider[%d] (%s): command is required for stdio transport",
					i, provider.Name,
				))
			}
		case TransportHTTP:
			if provider.URL == "" {
				return NewConfigError(fmt.Sprintf(
					"provider[%d] (%s): url is required for http transport",
					i, provider.Name,
				))
			}
		default:
			return NewConfigError(fmt.Sprintf(
				"provider[%d] (%s): unknown transport %q (expected \"stdio\" or \"http\")",
				i, provider.Name, provider.Transport,
			))
		}
	}

	return nil
}

// EnabledProviders returns only the providers marked enabled.
func (f *ProvidersFile) EnabledProviders() []ProviderConfig {
	enabled := make([]ProviderConfig, 0, len(f.Providers))
	for _, p := range f.Providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
