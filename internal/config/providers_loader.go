package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadProvidersFile loads and validates a tool provider configuration
// file using Koanf. Returns the parsed and validated ProvidersFile or
// an error.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Schema validation failure (unsupported version, missing required
//     fields, duplicate names, unknown transport)
func LoadProvidersFile(filepath string) (*ProvidersFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load providers config from %q: %w", filepath, err)
	}

	var cfg ProvidersFile
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse providers config from %q: %w", filepath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("providers config validation failed for %q: %w", filepath, err)
	}

	return &cfg, nil
}
