package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{
		"qiniu": {
			BaseURL: "https://api.example.com/v1",
			Model:   "deepseek-v3",
		},
	}
	cfg.Global.Provider = "qiniu"
	return *cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing provider",
			mutate:  func(c *Config) { c.Global.Provider = "" },
			wantErr: true,
		},
		{
			name:    "missing active profile",
			mutate:  func(c *Config) { c.Global.ActiveProfile = " " },
			wantErr: true,
		},
		{
			name:    "zero max retries",
			mutate:  func(c *Config) { c.Global.MaxRetries = 0 },
			wantErr: true,
		},
		{
			name:    "zero save interval",
			mutate:  func(c *Config) { c.Global.SaveInterval = 0 },
			wantErr: true,
		},
		{
			name:    "negative request delay",
			mutate:  func(c *Config) { c.Global.RequestDelay = -1 },
			wantErr: true,
		},
		{
			name:    "zero request delay is allowed",
			mutate:  func(c *Config) { c.Global.RequestDelay = 0 },
			wantErr: false,
		},
		{
			name: "temperature out of range",
			mutate: func(c *Config) {
				pc := c.Providers["qiniu"]
				pc.Temperature = 3
				c.Providers["qiniu"] = pc
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected error to wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParse_KeepsExplicitZeros(t *testing.T) {
	data := []byte(`
[global]
provider = "qiniu"
active_profile = "vocab"
request_delay = 0.0
retry_backoff_base = 0.5

[providers.qiniu]
base_url = "https://api.example.com/v1"
model = "deepseek-v3"
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Global.RequestDelay != 0 {
		t.Errorf("Expected request_delay 0, got %v", cfg.Global.RequestDelay)
	}
	if cfg.Global.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected default max_retries %d, got %d", DefaultMaxRetries, cfg.Global.MaxRetries)
	}
	if cfg.Global.SaveInterval != DefaultSaveInterval {
		t.Errorf("Expected default save_interval %d, got %d", DefaultSaveInterval, cfg.Global.SaveInterval)
	}

	pc := cfg.Providers["qiniu"]
	if pc.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("Expected max_output_tokens %d, got %d", DefaultMaxOutputTokens, pc.MaxOutputTokens)
	}
	if pc.HTTPTimeout() != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %v", pc.HTTPTimeout())
	}

	p := cfg.Global.Pipeline()
	if p.RequestDelay != 0 {
		t.Errorf("Expected zero request delay, got %v", p.RequestDelay)
	}
	if p.RetryBackoffBase != 500*time.Millisecond {
		t.Errorf("Expected 500ms backoff base, got %v", p.RetryBackoffBase)
	}
}

func TestParse_InvalidTOML(t *testing.T) {
	_, err := Parse([]byte("[global\nprovider = "))
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestResolvedType(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		cfg      ProviderConfig
		want     string
	}{
		{"explicit type", "custom", ProviderConfig{Type: "OpenAI"}, ProviderOpenAI},
		{"alias qiniu", "qiniu", ProviderConfig{}, ProviderOpenAI},
		{"alias deepseek", "DeepSeek", ProviderConfig{}, ProviderOpenAI},
		{"gemini", "gemini", ProviderConfig{}, ProviderGemini},
		{"unknown with base url", "local", ProviderConfig{BaseURL: "http://localhost:8080/v1"}, ProviderOpenAI},
		{"unknown without base url", "mystery", ProviderConfig{}, "mystery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedType(tt.provider); got != tt.want {
				t.Errorf("ResolvedType(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"qiniu":  {BaseURL: "https://api.example.com/v1", Model: "m", APIKey: "from-file"},
			"gemini": {Model: "gemini-1.5-flash"},
			"local":  {Type: "openai", BaseURL: "http://localhost/v1", Model: "m"},
		},
	}

	t.Setenv("QINIU_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-env")
	t.Setenv("LOCAL_API_KEY", "local-env")
	t.Setenv("API_KEY", "fallback")

	secrets, err := LoadSecrets(cfg)
	if err != nil {
		t.Fatalf("LoadSecrets() failed: %v", err)
	}

	if got := secrets.GetAPIKey("qiniu"); got != "from-file" {
		t.Errorf("Expected config file key for qiniu, got %q", got)
	}
	if got := secrets.GetAPIKey("gemini"); got != "gemini-env" {
		t.Errorf("Expected GEMINI_API_KEY for gemini, got %q", got)
	}
	if got := secrets.GetAPIKey("local"); got != "local-env" {
		t.Errorf("Expected LOCAL_API_KEY for local, got %q", got)
	}
	if got := secrets.GetAPIKey("missing"); got != "" {
		t.Errorf("Expected empty key for unknown provider, got %q", got)
	}
}

func TestLoad_MergesProfilesFile(t *testing.T) {
	dir := t.TempDir()

	profiles := `profiles:
  idioms:
    description: Chinese idioms
    user_prompt_template: "Idiom: {{.front_text}}"
    output_fields: [meaning]
    field_mapping:
      meaning: Back
  vocab:
    description: should lose against the main config
    user_prompt_template: "ignored"
    output_fields: [x]
    field_mapping:
      x: X
`
	if err := os.WriteFile(filepath.Join(dir, "profiles.yaml"), []byte(profiles), 0644); err != nil {
		t.Fatalf("Failed to write profiles file: %v", err)
	}

	main := `
[global]
provider = "qiniu"
active_profile = "vocab"
profiles_file = "profiles.yaml"

[providers.qiniu]
base_url = "https://api.example.com/v1"
model = "deepseek-v3"

[profiles.vocab]
description = "main vocab"
user_prompt_template = "Word: {{.front_text}}"
output_fields = ["translate"]

[profiles.vocab.field_mapping]
translate = "Back"
`
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte(main), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(cfg.Profiles))
	}
	if cfg.Profiles["vocab"].Description != "main vocab" {
		t.Errorf("Expected main config to win for vocab, got %q", cfg.Profiles["vocab"].Description)
	}
	if cfg.Profiles["idioms"].FieldMapping["meaning"] != "Back" {
		t.Errorf("Expected idioms profile from YAML, got %+v", cfg.Profiles["idioms"])
	}
}

func TestLoad_DefaultProfilesWhenNoneConfigured(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	data := `
[global]
provider = "gemini"

[providers.gemini]
model = "gemini-1.5-flash"
`
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if _, ok := cfg.Profiles["vocab"]; !ok {
		t.Error("Expected built-in vocab profile")
	}
	if _, ok := cfg.Profiles["enhance"]; !ok {
		t.Error("Expected built-in enhance profile")
	}
}

func TestLoadProfilesFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := LoadProfilesFile(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
