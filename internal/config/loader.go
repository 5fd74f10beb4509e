// Package config loads the root YAML configuration document into
// pkg/models.Config and validates it structurally before the registry ever
// sees it. It never interprets individual event kinds — that is the
// registry's job — only the document-level shape: unknown root keys,
// pool/device uniqueness, and required fields.
package config

import (
	"fmt"
	"os"

	"github.com/songokas/hvents/pkg/models"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file from configPath, unmarshals it
// strictly (unknown keys at the document root are an error), and validates
// it structurally.
func LoadConfig(configPath string) (*models.Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", configPath, err)
	}

	if err := checkUnknownRootKeys(raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", configPath, err)
	}

	// Unknown keys *within* an event are forward-compatible and must be
	// ignored, so only the root document goes through the known-keys check
	// above; the real decode stays permissive.
	var cfg models.Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", configPath, err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

var knownRootKeys = map[string]bool{
	"application": true,
	"events":      true,
	"event_files": true,
	"groups":      true,
	"start_with":  true,
	"mqtt":        true,
	"http":        true,
	"restore":     true,
	"location":    true,
	"devices":     true,
}

func checkUnknownRootKeys(raw []byte) error {
	var root map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return err
	}
	for key := range root {
		if !knownRootKeys[key] {
			return fmt.Errorf("unknown configuration key %q", key)
		}
	}
	return nil
}
