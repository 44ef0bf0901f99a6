package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lamim/cardforge/internal/config"
)

type geminiSettings struct {
	APIKey string `toml:"api_key" validate:"required"`
	Model  string `toml:"model" validate:"required"`
}

// Gemini calls Google's Gemini models through the generative-ai SDK
type Gemini struct {
	name   string
	cfg    config.ProviderConfig
	client *genai.Client
	logger *slog.Logger
}

func newGemini(ctx context.Context, name string, pc config.ProviderConfig, apiKey string, logger *slog.Logger) (Backend, error) {
	if err := validateSettings(name, geminiSettings{APIKey: apiKey, Model: pc.Model}); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		name:   name,
		cfg:    pc,
		client: client,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (g *Gemini) Name() string { return g.name }

// Generate sends one prompt, with the system prompt as system instruction
func (g *Gemini) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	model := g.client.GenerativeModel(g.cfg.Model)
	if g.cfg.Temperature > 0 {
		model.SetTemperature(float32(g.cfg.Temperature))
	}
	if g.cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(g.cfg.MaxOutputTokens))
	}
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	if timeout := g.cfg.HTTPTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", newError(g.name, classifyGeminiError(err), err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", newError(g.name, KindEmpty, err)
	}
	return text, nil
}

// Close releases the underlying SDK client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// extractText joins the text parts of the first candidate
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish_reason=%s)", candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	text := strings.Join(parts, "")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text parts in response")
	}
	return text, nil
}

func classifyGeminiError(err error) Kind {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return KindAuth
		case gerr.Code == http.StatusTooManyRequests:
			return KindRateLimit
		case gerr.Code >= http.StatusInternalServerError:
			return KindServer
		case gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "api key"):
			return KindAuth
		default:
			return KindUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	// The SDK may surface gRPC status errors as plain text
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permissiondenied"), strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "api key not valid"):
		return KindAuth
	case strings.Contains(msg, "resourceexhausted"), strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "internal"):
		return KindServer
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial"), strings.Contains(msg, "timeout"):
		return KindNetwork
	}
	return KindUnknown
}
