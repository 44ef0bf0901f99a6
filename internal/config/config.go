package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error that must abort a run
// before any record is processed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider variants understood by the backend factory
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// providerAliases maps well-known provider names onto their variant
var providerAliases = map[string]string{
	"openai":   ProviderOpenAI,
	"qiniu":    ProviderOpenAI,
	"deepseek": ProviderOpenAI,
	"gemini":   ProviderGemini,
	"google":   ProviderGemini,
}

// Config represents the complete application configuration
type Config struct {
	Global    GlobalConfig              `toml:"global"`
	Providers map[string]ProviderConfig `toml:"providers"`
	Profiles  map[string]ProfileConfig  `toml:"profiles"`
}

// GlobalConfig holds run-wide settings
type GlobalConfig struct {
	Provider         string  `toml:"provider"`
	ActiveProfile    string  `toml:"active_profile"`
	InputFile        string  `toml:"input_file"`
	OutputFile       string  `toml:"output_file"`
	OutputEncoding   string  `toml:"output_encoding"`
	CacheFile        string  `toml:"cache_file"` // Checkpoint table; empty disables resume
	LogFile          string  `toml:"log_file"`
	ProfilesFile     string  `toml:"profiles_file"`      // Optional extra profiles (.toml, .yaml, .yml)
	RequestDelay     float64 `toml:"request_delay"`      // Seconds slept after every record
	MaxRetries       int     `toml:"max_retries"`        // Total attempts per record
	RetryBackoffBase float64 `toml:"retry_backoff_base"` // Seconds, multiplied by the attempt number
	SaveInterval     int     `toml:"save_interval"`      // Records between checkpoint flushes
}

// ProviderConfig configures one generation backend
type ProviderConfig struct {
	Type               string  `toml:"type"` // openai or gemini; defaults from the provider name
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	APIKey             string  `toml:"api_key"`
	Temperature        float64 `toml:"temperature"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"` // 0 disables client-side limiting
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"`
	UseJSONMode        bool    `toml:"use_json_mode"` // Ask OpenAI-compatible endpoints for a JSON object
}

// ResolvedType returns the backend variant for a provider entry
func (p ProviderConfig) ResolvedType(name string) string {
	if p.Type != "" {
		return strings.ToLower(p.Type)
	}
	if kind, ok := providerAliases[strings.ToLower(name)]; ok {
		return kind
	}
	if p.BaseURL != "" {
		return ProviderOpenAI
	}
	return strings.ToLower(name)
}

// HTTPTimeout returns the per-request timeout
func (p ProviderConfig) HTTPTimeout() time.Duration {
	return time.Duration(p.HTTPTimeoutSeconds) * time.Second
}

// ProfileConfig is the declarative description of one generation scenario
type ProfileConfig struct {
	Description        string            `toml:"description" yaml:"description"`
	SystemPrompt       string            `toml:"system_prompt" yaml:"system_prompt"`
	UserPromptTemplate string            `toml:"user_prompt_template" yaml:"user_prompt_template"`
	OutputFormat       string            `toml:"output_format" yaml:"output_format"` // json (default) or text
	OutputFields       []string          `toml:"output_fields" yaml:"output_fields"`
	FieldMapping       map[string]string `toml:"field_mapping" yaml:"field_mapping"`
	AnkiFields         []string          `toml:"anki_fields" yaml:"anki_fields"` // Optional export column order
}

// PipelineConfig holds the pacing and persistence knobs of the generation loop
type PipelineConfig struct {
	RequestDelay     time.Duration
	MaxRetries       int
	RetryBackoffBase time.Duration
	SaveInterval     int
}

// Pipeline converts the global settings into engine settings
func (g GlobalConfig) Pipeline() PipelineConfig {
	return PipelineConfig{
		RequestDelay:     secondsToDuration(g.RequestDelay),
		MaxRetries:       g.MaxRetries,
		RetryBackoffBase: secondsToDuration(g.RetryBackoffBase),
		SaveInterval:     g.SaveInterval,
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Secrets holds API keys resolved from the environment and the config file
type Secrets struct {
	APIKeys map[string]string
}

// GetAPIKey returns the resolved key for a provider name
func (s *Secrets) GetAPIKey(providerName string) string {
	if s == nil {
		return ""
	}
	return s.APIKeys[providerName]
}

// LoadSecrets resolves one API key per configured provider. Lookup order:
// <NAME>_API_KEY, the variant's conventional variables, the config file, API_KEY.
func LoadSecrets(cfg *Config) (*Secrets, error) {
	secrets := &Secrets{APIKeys: make(map[string]string, len(cfg.Providers))}

	for name, pc := range cfg.Providers {
		candidates := []string{envKeyName(name)}
		switch pc.ResolvedType(name) {
		case ProviderOpenAI:
			candidates = append(candidates, "OPENAI_API_KEY")
		case ProviderGemini:
			candidates = append(candidates, "GEMINI_API_KEY", "GOOGLE_API_KEY")
		}

		key := ""
		for _, envName := range candidates {
			if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
				key = v
				break
			}
		}
		if key == "" {
			key = strings.TrimSpace(pc.APIKey)
		}
		if key == "" {
			key = strings.TrimSpace(os.Getenv("API_KEY"))
		}
		secrets.APIKeys[name] = key
	}

	return secrets, nil
}

func envKeyName(providerName string) string {
	name := strings.ToUpper(strings.ReplaceAll(providerName, "-", "_"))
	return name + "_API_KEY"
}

const (
	// MaxSaveInterval caps how many records may accumulate between checkpoint flushes
	MaxSaveInterval = 100000
	// MaxRetryAttempts caps the per-record attempt count
	MaxRetryAttempts = 20
)

// Validate checks run-wide settings. Profiles are validated when activated and
// provider entries when the backend is constructed.
func (c *Config) Validate() error {
	g := c.Global

	if strings.TrimSpace(g.Provider) == "" {
		return fmt.Errorf("%w: global.provider is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(g.ActiveProfile) == "" {
		return fmt.Errorf("%w: global.active_profile is required", ErrInvalidConfig)
	}
	if g.RequestDelay < 0 {
		return fmt.Errorf("%w: global.request_delay must not be negative (got %.2f)", ErrInvalidConfig, g.RequestDelay)
	}
	if g.RetryBackoffBase < 0 {
		return fmt.Errorf("%w: global.retry_backoff_base must not be negative (got %.2f)", ErrInvalidConfig, g.RetryBackoffBase)
	}
	if g.MaxRetries < 1 || g.MaxRetries > MaxRetryAttempts {
		return fmt.Errorf("%w: global.max_retries must be between 1 and %d (got %d)", ErrInvalidConfig, MaxRetryAttempts, g.MaxRetries)
	}
	if g.SaveInterval < 1 || g.SaveInterval > MaxSaveInterval {
		return fmt.Errorf("%w: global.save_interval must be between 1 and %d (got %d)", ErrInvalidConfig, MaxSaveInterval, g.SaveInterval)
	}

	for name, pc := range c.Providers {
		if pc.RateLimitPerMinute < 0 {
			return fmt.Errorf("%w: providers.%s.rate_limit_per_minute must not be negative", ErrInvalidConfig, name)
		}
		if pc.MaxOutputTokens < 0 {
			return fmt.Errorf("%w: providers.%s.max_output_tokens must not be negative", ErrInvalidConfig, name)
		}
		if pc.Temperature < 0 || pc.Temperature > 2 {
			return fmt.Errorf("%w: providers.%s.temperature must be between 0 and 2 (got %.2f)", ErrInvalidConfig, name, pc.Temperature)
		}
	}

	return nil
}

// ProviderNames returns the configured provider names in sorted order
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
