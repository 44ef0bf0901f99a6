package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for prompt templates
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxProfileNameLength is the maximum allowed length for a profile name
	MaxProfileNameLength = 64
)

// ValidateInputs performs additional validation on user-controllable fields
// that end up in HTTP requests or file names.
func (c *Config) ValidateInputs() error {
	for name, pc := range c.Providers {
		if err := validateModelName(pc.Model, name); err != nil {
			return err
		}

		// base_url is optional for SDK-backed providers
		if pc.BaseURL != "" {
			if err := validateBaseURL(pc.BaseURL, name); err != nil {
				return err
			}
		}
	}

	for name := range c.Profiles {
		if len(name) > MaxProfileNameLength {
			return fmt.Errorf("profile name '%s' exceeds maximum length of %d", name, MaxProfileNameLength)
		}
		if containsControlChars(name) {
			return fmt.Errorf("profile name '%s' contains invalid control characters", name)
		}
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("provider '%s' model name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("provider '%s' model name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("provider '%s' has invalid base_url: %w", configKey, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider '%s' base_url must use http or https scheme (got %s)",
			configKey, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("provider '%s' base_url must have a host", configKey)
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
