package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	// Relative profiles_file paths are resolved against the config file
	if cfg.Global.ProfilesFile != "" {
		path := cfg.Global.ProfilesFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(configPath), path)
		}
		extra, err := LoadProfilesFile(path)
		if err != nil {
			return nil, nil, err
		}
		mergeProfiles(cfg, extra)
	}

	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("%w: input validation failed: %v", ErrInvalidConfig, err)
	}

	secrets, err := LoadSecrets(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML over the defaults, so keys absent from the file keep their
// default values while explicit zeros are preserved.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", ErrInvalidConfig, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadProfilesFile reads a standalone profiles document. The file holds a
// top-level "profiles" table in TOML or YAML, picked by extension.
func LoadProfilesFile(path string) (map[string]ProfileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var doc struct {
		Profiles map[string]ProfileConfig `toml:"profiles" yaml:"profiles"`
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to parse profiles file %s: %v", ErrInvalidConfig, path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to parse profiles file %s: %v", ErrInvalidConfig, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: profiles file %s must be .toml, .yaml or .yml", ErrInvalidConfig, path)
	}

	return doc.Profiles, nil
}

// mergeProfiles adds profiles from a profiles file; entries from the main
// config win on name clashes.
func mergeProfiles(cfg *Config, extra map[string]ProfileConfig) {
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]ProfileConfig, len(extra))
	}
	for name, p := range extra {
		if _, exists := cfg.Profiles[name]; !exists {
			cfg.Profiles[name] = p
		}
	}
}

// applyDefaults fills per-provider settings that TOML leaves at zero
func applyDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	for name, pc := range cfg.Providers {
		if pc.Temperature == 0 {
			pc.Temperature = DefaultTemperature
		}
		if pc.MaxOutputTokens == 0 {
			pc.MaxOutputTokens = DefaultMaxOutputTokens
		}
		if pc.HTTPTimeoutSeconds == 0 {
			pc.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
		}
		cfg.Providers[name] = pc
	}

	for name, p := range cfg.Profiles {
		if p.OutputFormat == "" {
			p.OutputFormat = OutputFormatJSON
			cfg.Profiles[name] = p
		}
	}
}
