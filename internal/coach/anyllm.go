package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// AnyLLMBackend talks to any provider supported by any-llm-go.
type AnyLLMBackend struct {
	provider    string
	model       string
	backend     anyllmlib.Provider
	temperature float64
}

// NewAnyLLMBackend creates a backend for providerName ("gemini", "openai",
// "anthropic" or "ollama"). Without an API key the provider falls back to its
// usual environment variable (e.g. GEMINI_API_KEY).
func NewAnyLLMBackend(providerName, model, apiKey, baseURL string) (*AnyLLMBackend, error) {
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}

	var opts []anyllmlib.Option
	if apiKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &AnyLLMBackend{
		provider:    strings.ToLower(providerName),
		model:       model,
		backend:     backend,
		temperature: 0.4,
	}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "gemini":
		return gemini.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: gemini, openai, anthropic, ollama, %s", providerName, ProviderOpenAINative)
	}
}

// Name implements Backend.
func (b *AnyLLMBackend) Name() string { return b.provider }

// Complete implements Backend.
func (b *AnyLLMBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	t := b.temperature
	params := anyllmlib.CompletionParams{
		Model: b.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: &t,
	}

	resp, err := b.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("anyllm: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}
