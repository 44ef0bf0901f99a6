package config

import (
	"strings"
	"testing"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"https", "https://api.qnaigc.com/v1", ""},
		{"http localhost", "http://localhost:8080/v1", ""},
		{"ftp scheme", "ftp://example.com", "http or https"},
		{"no host", "https://", "must have a host"},
		{"garbage", "://bad", "invalid base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBaseURL(tt.url, "qiniu")
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateBaseURL(%q) returned unexpected error: %v", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateBaseURL(%q) expected error containing %q", tt.url, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateModelName(t *testing.T) {
	if err := validateModelName("deepseek-v3", "qiniu"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := validateModelName(strings.Repeat("m", MaxModelNameLength+1), "qiniu"); err == nil {
		t.Error("Expected error for overlong model name")
	}
	if err := validateModelName("model\x00name", "qiniu"); err == nil {
		t.Error("Expected error for control characters")
	}
}

func TestValidateInputs(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["gemini"] = ProviderConfig{Model: "gemini-1.5-flash"} // no base_url is fine
	cfg.Profiles = map[string]ProfileConfig{"vocab": {}}

	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("ValidateInputs() returned unexpected error: %v", err)
	}

	cfg.Profiles[strings.Repeat("p", MaxProfileNameLength+1)] = ProfileConfig{}
	if err := cfg.ValidateInputs(); err == nil {
		t.Error("Expected error for overlong profile name")
	}
}

func TestContainsControlChars(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"plain", false},
		{"tab\tnewline\n", false},
		{"bell\a", true},
		{"null\x00", true},
	}

	for _, tt := range tests {
		if got := containsControlChars(tt.input); got != tt.want {
			t.Errorf("containsControlChars(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
