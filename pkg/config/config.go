// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// LoadFS loads configuration from a YAML file on fs with environment variable
// expansion, then validates it when target implements Validator.
func LoadFS[T any](fs afero.Fs, filename string, target *T) error {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadWithDefaults loads filename from fs, falling back to defaultFile when
// filename does not exist.
func LoadWithDefaults[T any](fs afero.Fs, filename, defaultFile string, target *T) error {
	if _, err := fs.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile != "" {
			return LoadFS(fs, defaultFile, target)
		}
		return fmt.Errorf("config file not found: %s", filename)
	}
	return LoadFS(fs, filename, target)
}
