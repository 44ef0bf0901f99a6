package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lamim/cardforge/internal/api"
	"github.com/lamim/cardforge/internal/config"
)

type openAISettings struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	APIKey  string `toml:"api_key" validate:"required"`
	Model   string `toml:"model" validate:"required"`
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint
type OpenAI struct {
	name   string
	cfg    config.ProviderConfig
	apiKey string
	client *api.Client
	logger *slog.Logger
}

func newOpenAI(_ context.Context, name string, pc config.ProviderConfig, apiKey string, logger *slog.Logger) (Backend, error) {
	if err := validateSettings(name, openAISettings{BaseURL: pc.BaseURL, APIKey: apiKey, Model: pc.Model}); err != nil {
		return nil, err
	}
	return &OpenAI{
		name:   name,
		cfg:    pc,
		apiKey: apiKey,
		client: api.NewClient(logger, pc.HTTPTimeout()),
		logger: logger,
	}, nil
}

// Name returns the provider name
func (o *OpenAI) Name() string { return o.name }

// Generate sends a chat completion with an optional system message
func (o *OpenAI) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]api.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: prompt})

	if timeout := o.cfg.HTTPTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := o.client.ChatCompletion(ctx, o.cfg, o.apiKey, messages)
	if err != nil {
		return "", newError(o.name, classifyAPIError(err), err)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", newError(o.name, KindEmpty,
			fmt.Errorf("empty content (finish_reason=%s)", resp.Choices[0].FinishReason))
	}
	return content, nil
}

// Close is a no-op; the HTTP client holds no per-backend resources
func (o *OpenAI) Close() error { return nil }

func classifyAPIError(err error) Kind {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return KindUnknown
	}
	switch {
	case apiErr.StatusCode == 0:
		return KindNetwork
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return KindAuth
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindUnknown
	}
}
