// Package provider turns a named provider entry from the configuration into a
// generation backend. Every backend takes a user prompt and an optional system
// prompt and returns the raw model text.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lamim/cardforge/internal/config"
)

// Backend is a text generation service
type Backend interface {
	// Name returns the configured provider name
	Name() string
	// Generate sends one prompt and returns the raw response text
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
	// Close releases any resources held by the backend
	Close() error
}

// Kind classifies a backend failure
type Kind string

const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindNetwork   Kind = "network"
	KindServer    Kind = "server"
	KindEmpty     Kind = "empty"
	KindUnknown   Kind = "unknown"
)

// Error is returned by every backend when a generation call fails.
// All kinds are retryable by the generation engine.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s backend %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(provider string, kind Kind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}

type factory func(ctx context.Context, name string, pc config.ProviderConfig, apiKey string, logger *slog.Logger) (Backend, error)

var factories = map[string]factory{
	config.ProviderOpenAI: newOpenAI,
	config.ProviderGemini: newGemini,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// New builds the backend for the named provider entry
func New(ctx context.Context, name string, cfg *config.Config, secrets *config.Secrets, logger *slog.Logger) (Backend, error) {
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q (configured: %s)",
			config.ErrInvalidConfig, name, strings.Join(cfg.ProviderNames(), ", "))
	}

	kind := pc.ResolvedType(name)
	build, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q has unsupported type %q (available: %s)",
			config.ErrInvalidConfig, name, kind, strings.Join(Types(), ", "))
	}

	logger.Debug("Creating backend", "provider", name, "type", kind, "model", pc.Model)
	return build(ctx, name, pc, secrets.GetAPIKey(name), logger)
}

// Types returns the supported backend variants
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// validateSettings runs struct validation and reports missing or malformed
// settings by their configuration key.
func validateSettings(name string, settings any) error {
	err := validate.Struct(settings)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: providers.%s: %v", config.ErrInvalidConfig, name, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
		case "url":
			problems = append(problems, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: providers.%s: %s", config.ErrInvalidConfig, name, strings.Join(problems, "; "))
}
